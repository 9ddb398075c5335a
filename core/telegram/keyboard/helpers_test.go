package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"a", "b"}, nil, []string{"c"})

	assert.True(t, m.ResizeKeyboard)
	require.Len(t, m.ReplyKeyboard, 2)
	assert.Equal(t, "a", m.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "b", m.ReplyKeyboard[0][1].Text)
	assert.Equal(t, "c", m.ReplyKeyboard[1][0].Text)
}

func TestURLButton(t *testing.T) {
	m := URLButton("write", "https://t.me/manager")

	require.Len(t, m.InlineKeyboard, 1)
	require.Len(t, m.InlineKeyboard[0], 1)
	assert.Equal(t, "write", m.InlineKeyboard[0][0].Text)
	assert.Equal(t, "https://t.me/manager", m.InlineKeyboard[0][0].URL)
}

func TestRemoveKeyboard(t *testing.T) {
	assert.True(t, RemoveKeyboard().RemoveKeyboard)
}
