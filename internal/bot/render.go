package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/linzabot/core/telegram/keyboard"
	"github.com/m3rciful/linzabot/internal/form"
)

// Render converts a machine markup to a telebot reply markup; nil keeps the
// keyboard the user currently sees.
func Render(m form.Markup) *tele.ReplyMarkup {
	switch m.Kind {
	case form.MarkupRemove:
		return keyboard.RemoveKeyboard()
	case form.MarkupReply:
		return keyboard.ReplyButtons(m.Rows...)
	case form.MarkupLink:
		return keyboard.URLButton(m.Label, m.URL)
	default:
		return nil
	}
}
