package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/linzabot/core/telegram"
	"github.com/m3rciful/linzabot/core/telegram/commands"
)

type fakeFSM struct {
	active  map[int64]bool
	handled int
}

func (f *fakeFSM) InProgress(userID int64) bool { return f.active[userID] }

func (f *fakeFSM) ManagerHandler(tele.Context) error {
	f.handled++
	return nil
}

func newContext(t *testing.T, userID int64, text string) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
		},
	})
}

func TestTextRouteDispatch(t *testing.T) {
	fsm := &fakeFSM{active: map[int64]bool{1: true}}
	reg := tg.NewRegistry()
	started := 0
	reg.RegisterCommand("/start", commands.Command{
		Description: "start",
		Handler:     func(tele.Context) error { started++; return nil },
	})
	unknown := 0
	route := TextRoute(fsm, reg, TextOptions{UnknownText: func(tele.Context) error { unknown++; return nil }})
	assert.Equal(t, tele.OnText, route.Endpoint)

	require.NoError(t, route.Handler(newContext(t, 1, "anything")))
	require.NoError(t, route.Handler(newContext(t, 2, "/start")))
	require.NoError(t, route.Handler(newContext(t, 2, "hello")))

	assert.Equal(t, 1, fsm.handled)
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, unknown)
}

func TestTextRouteSlashTextNeverReachesFSM(t *testing.T) {
	fsm := &fakeFSM{active: map[int64]bool{1: true}}
	reg := tg.NewRegistry()
	started := 0
	reg.RegisterCommand("/start", commands.Command{
		Description: "start",
		Handler:     func(tele.Context) error { started++; return nil },
	})
	unknownCmd := 0
	route := TextRoute(fsm, reg, TextOptions{UnknownCommand: func(tele.Context) error { unknownCmd++; return nil }})

	require.NoError(t, route.Handler(newContext(t, 1, "/help")))
	require.NoError(t, route.Handler(newContext(t, 1, "/start@linzabot now")))
	require.NoError(t, route.Handler(newContext(t, 1, "/")))

	assert.Equal(t, 1, unknownCmd)
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, fsm.handled, "a lone slash is ordinary text")
}

func TestCommandName(t *testing.T) {
	cases := map[string]string{
		"/help":            "/help",
		" /start arg":      "/start",
		"/cancel@linzabot": "/cancel",
	}
	for in, want := range cases {
		got, ok := commandName(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "/", "hello", "a/b"} {
		_, ok := commandName(in)
		assert.False(t, ok, in)
	}
}

func TestTextRouteFallbackWins(t *testing.T) {
	reg := tg.NewRegistry()
	fallback := 0
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	route := TextRoute(nil, reg, TextOptions{})
	require.NoError(t, route.Handler(newContext(t, 3, "hi")))
	assert.Equal(t, 1, fallback)
}

func TestCommandRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterCommand("/cancel", commands.Command{
		Description: "cancel",
		Handler:     func(tele.Context) error { return boom },
	})

	routes := CommandRoutes(reg)
	require.Len(t, routes, 1)
	assert.Equal(t, "/cancel", routes[0].Endpoint)
	assert.ErrorIs(t, routes[0].Handler(newContext(t, 1, "/cancel")), boom)
	assert.Nil(t, CommandRoutes(nil))
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "store unavailable" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "STORE_UNAVAILABLE", deriveErrorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "PLAINERR", deriveErrorCode(fmt.Errorf("wrap: %w", &plainErr{})))
	assert.Equal(t, "start", normalizeHandlerName("/Start"))
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
}
