package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/linzabot/core/telegram"
	"github.com/m3rciful/linzabot/core/telegram/callbacks"
)

// CallbackRoute acknowledges inline button presses through the registry's
// not-found handler. The bot sends link buttons only, so no callback carries state.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.Parse(c.Callback())
		h := reg.CallbackNotFound()
		return handleWithSummary(c, "callback."+normalizeHandlerName(key), time.Now(), func() error {
			if h == nil {
				return c.Respond()
			}
			return h(c)
		}, slog.String("cb_key", key))
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
