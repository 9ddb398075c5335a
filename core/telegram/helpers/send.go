package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/linzabot/core/logger"
	"github.com/m3rciful/linzabot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by Send. Nil sends inline.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Send delivers text with an optional reply markup to the current chat. When a
// dispatcher is set the call is queued; a saturated or closed queue falls back to
// an inline send.
func Send(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	run := func() error {
		if markup != nil {
			return c.Send(text, markup)
		}
		return c.Send(text)
	}

	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, "send.text", "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", "send.text"),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}
