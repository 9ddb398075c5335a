// Package bot connects the questionnaire machine to Telegram updates.
package bot

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/linzabot/core/logger"
	tg "github.com/m3rciful/linzabot/core/telegram"
	"github.com/m3rciful/linzabot/core/telegram/commands"
	tghelpers "github.com/m3rciful/linzabot/core/telegram/helpers"
	"github.com/m3rciful/linzabot/core/telegram/middleware"
	"github.com/m3rciful/linzabot/core/telegram/router"
	"github.com/m3rciful/linzabot/core/telegram/state"
	"github.com/m3rciful/linzabot/internal/form"
	"github.com/m3rciful/linzabot/internal/metrics"
)

// Sessions is the session manager specialised for questionnaire sessions.
type Sessions = state.Manager[form.Session]

// Bot handles /start, /cancel and conversation text.
type Bot struct {
	machine  *form.Machine
	sessions *Sessions
	send     func(c tele.Context, text string, markup *tele.ReplyMarkup) error
}

// New returns a Bot driving machine with sessions kept in sessions.
func New(machine *form.Machine, sessions *Sessions) *Bot {
	return &Bot{
		machine:  machine,
		sessions: sessions,
		send:     tghelpers.Send,
	}
}

// Register adds the bot commands to reg and claims conversation text in every active state.
func (b *Bot) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Description: "Открыть главное меню",
		Handler:     b.OnStart,
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Description: "Отменить действие",
		Handler:     b.OnCancel,
	})
	for _, st := range []form.State{form.StateMenu, form.StateFillForm, form.StatePartnership} {
		b.sessions.RegisterHandler(state.State(st), b.OnText)
	}
}

// Routes returns the telebot routes for the commands in reg, conversation text and callbacks.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg)
	routes = append(routes,
		router.TextRoute(b.sessions, reg, router.TextOptions{
			UnknownText:    b.OnText,
			UnknownCommand: b.OnUnknownCommand,
		}),
		router.CallbackRoute(reg),
	)
	return routes
}

// OnStart handles /start.
func (b *Bot) OnStart(c tele.Context) error {
	return b.dispatch(c, form.StartEvent())
}

// OnCancel handles /cancel.
func (b *Bot) OnCancel(c tele.Context) error {
	return b.dispatch(c, form.CancelEvent())
}

// OnText handles plain text and reply keyboard presses.
func (b *Bot) OnText(c tele.Context) error {
	return b.dispatch(c, form.TextEvent(c.Text()))
}

// OnUnknownCommand answers slash text that matches no command. The session is
// left as is so an unknown command is never taken as an answer.
func (b *Bot) OnUnknownCommand(c tele.Context) error {
	return b.send(c, form.TextUnknownCommand, nil)
}

// CountUpdates is a middleware counting inbound updates by kind.
func CountUpdates(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.UpdatesReceived.WithLabelValues(middleware.UpdateKind(c)).Inc()
		return next(c)
	}
}

// dispatch runs ev through the machine under the sender's lock, stores the next
// session and sends the resulting messages in order.
func (b *Bot) dispatch(c tele.Context, ev form.Event) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	userID := user.ID
	ctx := tghelpers.BuildContext(c)

	return b.sessions.WithLock(userID, func() error {
		stored, _ := b.sessions.Get(userID)
		cur := stored.Data
		cur.State = form.State(stored.State)

		next, actions, err := b.machine.Handle(ctx, userID, cur, ev)
		b.sessions.Save(userID, state.Session[form.Session]{State: state.State(next.State), Data: next})

		metrics.Transitions.WithLabelValues(string(cur.State), string(next.State), ev.Kind.String()).Inc()
		metrics.ActiveSessions.Set(float64(b.sessions.Len()))

		attrs := []slog.Attr{
			slog.String("from_state", string(cur.State)),
			slog.String("to_state", string(next.State)),
			slog.String("input", ev.Kind.String()),
		}
		if next.State == form.StateFillForm {
			attrs = append(attrs, slog.Int("question", next.Index))
		}
		if err != nil {
			attrs = append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))
			logger.LogEvent(ctx, logger.Form, slog.LevelError, "form.transition", attrs...)
		} else {
			attrs = append(attrs, slog.String("status", "ok"))
			logger.LogEvent(ctx, logger.Form, slog.LevelDebug, "form.transition", attrs...)
		}

		for _, a := range actions {
			if sendErr := b.send(c, a.Text, Render(a.Markup)); sendErr != nil {
				logger.LogEvent(ctx, logger.Form, slog.LevelWarn, "form.reply",
					slog.String("status", "fail"),
					slog.String("err", sendErr.Error()),
				)
				break
			}
		}
		return err
	})
}
