package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/linzabot/core/telegram"
)

// FSM is the part of a session manager the text router needs.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls the fallback for unclaimed text.
type TextOptions struct {
	UnknownText tele.HandlerFunc
	// UnknownCommand handles slash text matching no registered command. Such text
	// never reaches the FSM.
	UnknownCommand tele.HandlerFunc
}

// TextRoute routes plain text: slash text goes to the matching command or
// opts.UnknownCommand, users in a conversation go to the FSM, the rest to the
// registry fallback or opts.UnknownText.
func TextRoute(fsm FSM, reg *tg.Registry, opts TextOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()

		if name, ok := commandName(c.Text()); ok {
			if reg != nil {
				if key, cmd, found := reg.LookupCommand(name); found && cmd.Handler != nil {
					return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
						return cmd.Handler(c)
					})
				}
			}
			if opts.UnknownCommand != nil {
				return handleWithSummary(c, "unknown_command", start, func() error {
					return opts.UnknownCommand(c)
				})
			}
			logHandlerSummary(c, "unknown_command", start, nil, "skip")
			return nil
		}

		if fsm != nil && c.Sender() != nil && fsm.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "fsm", start, func() error {
				return fsm.ManagerHandler(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, nil, "skip")
		return nil
	}
	return tg.Route{Endpoint: tele.OnText, Handler: handler}
}

// commandName extracts "/name" from slash text, dropping arguments and a
// trailing "@botname".
func commandName(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '/' {
		return "", false
	}
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return name, len(name) > 1
}
