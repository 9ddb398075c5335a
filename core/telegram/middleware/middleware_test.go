package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/linzabot/core/telegram/helpers"
)

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(upd)
}

func textUpdate(id int, userID int64, text string) tele.Update {
	return tele.Update{
		ID: id,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
		},
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	handled := 0
	h := mw(func(tele.Context) error { handled++; return nil })

	require.NoError(t, h(newContext(t, textUpdate(1, 10, "a"))))
	require.NoError(t, h(newContext(t, textUpdate(2, 10, "b"))))
	require.NoError(t, h(newContext(t, textUpdate(3, 11, "c"))))

	assert.Equal(t, 2, handled)
	assert.Equal(t, 1, limited)
}

func TestRateLimitMiddlewareExclusions(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	handled := 0
	h := mw(func(tele.Context) error { handled++; return nil })

	for i := 0; i < 3; i++ {
		require.NoError(t, h(newContext(t, textUpdate(i, 10, "x"))))
	}
	assert.Equal(t, 3, handled)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newContext(t, textUpdate(1, 10, "x")))
	assert.ErrorContains(t, err, "boom")
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := newContext(t, textUpdate(77, 10, "hello"))
	var rid string
	h := LoggerMiddleware(func(c tele.Context) error {
		rid, _ = c.Get("rid").(string)
		_, ok := tghelpers.ContextFrom(c)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, h(c))
	assert.NotEmpty(t, rid)
}

func TestMessageCountersDefaults(t *testing.T) {
	c := newContext(t, textUpdate(1, 10, "x"))
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		msgs, kb := GetCounters(c)
		assert.Zero(t, msgs)
		assert.False(t, kb)
		return nil
	})
	require.NoError(t, h(c))
	assert.True(t, hasKeyboard([]interface{}{&tele.ReplyMarkup{}}))
	assert.False(t, hasKeyboard([]interface{}{tele.ModeHTML}))
}
