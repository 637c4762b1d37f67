package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a convenience wrapper for inline button properties.
// With Unique empty, Data is sent verbatim as the callback data.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// Inline converts b into a Telegram inline button.
func (b InlineBtn) Inline() tele.InlineButton {
	if b.Unique == "" {
		return tele.InlineButton{Text: b.Text, Data: b.Data}
	}
	markup := &tele.ReplyMarkup{}
	return *markup.Data(b.Text, b.Unique, b.Data).Inline()
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = btn.Inline()
		}
		inline[i] = r
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}
