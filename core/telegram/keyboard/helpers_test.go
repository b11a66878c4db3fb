package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridRows(t *testing.T) {
	btns := []Button{
		{Text: "1h", Data: "delafter:3600"},
		{Text: "1d", Data: "delafter:86400"},
		{Text: "Never", Data: "delafter:0"},
	}

	m := Grid(btns, 2)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Len(t, m.InlineKeyboard[1], 1)
	assert.Equal(t, "Never", m.InlineKeyboard[1][0].Text)
	assert.Equal(t, "delafter:0", m.InlineKeyboard[1][0].Data)

	assert.Len(t, Grid(btns, 0).InlineKeyboard, 3)
	assert.Empty(t, Grid(nil, 2).InlineKeyboard)
}

func TestGridKeepsUnique(t *testing.T) {
	m := Grid([]Button{{Text: "Go", Unique: "start", Data: "x"}}, 1)
	assert.Equal(t, "start", m.InlineKeyboard[0][0].Unique)
}
