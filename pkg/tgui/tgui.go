// Package tgui holds small helpers for building inline keyboards.
package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline accumulates button rows for an inline keyboard. Rows are only
// rendered into a ReplyMarkup when Markup is called, so a builder can be
// passed around and extended freely before that.
type Inline struct {
	rows []tele.Row
}

func NewInline() *Inline { return &Inline{} }

// Row appends one row of buttons.
func (i *Inline) Row(btns ...tele.Btn) *Inline {
	i.rows = append(i.rows, tele.Row(btns))
	return i
}

// Markup renders the accumulated rows as a fresh reply markup.
func (i *Inline) Markup() *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	rm.Inline(i.rows...)
	return rm
}

// URLBtn is a button that opens url when tapped.
func URLBtn(text, url string) tele.Btn {
	return tele.Btn{Text: text, URL: url}
}
