// Package keyboard builds inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button. With an empty Unique, Data reaches the bot
// as is; otherwise telebot prefixes it with the unique.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Grid lays buttons out left to right with at most perRow per row. perRow
// below one puts every button on its own row.
func Grid(buttons []Button, perRow int) *tele.ReplyMarkup {
	perRow = max(perRow, 1)
	markup := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, (len(buttons)+perRow-1)/perRow)
	for i, b := range buttons {
		if i%perRow == 0 {
			rows = append(rows, make([]tele.InlineButton, 0, perRow))
		}
		last := len(rows) - 1
		rows[last] = append(rows[last], *markup.Data(b.Text, b.Unique, b.Data).Inline())
	}
	markup.InlineKeyboard = rows
	return markup
}
