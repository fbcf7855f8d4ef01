package ui

import (
	"strconv"

	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"
)

// NumericalEntry is an Entry that only accepts digits from the keyboard.
// Used for the lunar month, the lunar day and the feed port.
type NumericalEntry struct {
	widget.Entry
}

// NewNumericalEntry creates a new instance of NumericalEntry.
func NewNumericalEntry() *NumericalEntry {
	entry := &NumericalEntry{}
	entry.ExtendBaseWidget(entry)
	return entry
}

// TypedRune drops anything but 0-9. Pasted text bypasses this; the Validator catches it.
func (e *NumericalEntry) TypedRune(r rune) {
	if r >= '0' && r <= '9' {
		e.Entry.TypedRune(r)
	}
}

// Keyboard asks mobile drivers for the numeric keypad.
func (e *NumericalEntry) Keyboard() mobile.KeyboardType {
	return mobile.NumberKeyboard
}

// Int parses the current text. ok is false for empty or pasted non-numeric text.
func (e *NumericalEntry) Int() (n int, ok bool) {
	n, err := strconv.Atoi(e.Text)
	return n, err == nil
}
