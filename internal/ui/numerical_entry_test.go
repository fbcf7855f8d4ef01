package ui_test

import (
	"testing"

	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-lunar-birthday/internal/ui"
)

func TestNumericalEntry_TypedRune(t *testing.T) {
	entry := ui.NewNumericalEntry()
	window := test.NewWindow(entry)
	defer window.Close()

	tests := []struct {
		name     string
		input    rune
		accepted bool
	}{
		{"Digit_Zero", '0', true},
		{"Digit_Nine", '9', true},
		{"Letter_a", 'a', false},
		{"Symbol_Dash", '-', false},
		{"Ideograph", '八', false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry.SetText("")
			test.Type(entry, string(tt.input))

			if tt.accepted {
				assert.Equal(t, string(tt.input), entry.Text)
			} else {
				assert.Empty(t, entry.Text)
			}
		})
	}
}

func TestNumericalEntry_Keyboard(t *testing.T) {
	entry := ui.NewNumericalEntry()
	assert.Equal(t, mobile.NumberKeyboard, entry.Keyboard())
}

func TestNumericalEntry_Int(t *testing.T) {
	entry := ui.NewNumericalEntry()

	entry.SetText("12")
	n, ok := entry.Int()
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	// SetText bypasses TypedRune, as a paste would.
	entry.SetText("abc")
	_, ok = entry.Int()
	assert.False(t, ok)

	entry.SetText("")
	_, ok = entry.Int()
	assert.False(t, ok)
}
