// Package screenfit picks font sizes for the tiny device screens.
//
// Pure lookup tables over text length; no layout measurement. Used by
// whatever renders device panels, never by the message state machine.
package screenfit

import "unicode/utf8"

// ButtonFontPx returns the font size for a response button label.
func ButtonFontPx(label string) int {
	switch n := utf8.RuneCountInString(label); {
	case n <= 4:
		return 14
	case n <= 8:
		return 12
	case n <= 12:
		return 11
	case n <= 16:
		return 10
	default:
		return 9
	}
}

// MessageFontPx returns the font size for message text in a roomy panel
// (history entries, previews).
func MessageFontPx(text string) int {
	switch n := utf8.RuneCountInString(text); {
	case n <= 20:
		return 18
	case n <= 40:
		return 16
	case n <= 80:
		return 14
	case n <= 120:
		return 13
	default:
		return 12
	}
}

// DeviceFontPx returns the font size for message text on a device screen.
// Response buttons eat vertical space, so their presence shrinks the text
// by one step, floored at 11px for readability.
func DeviceFontPx(text string, hasButtons bool) int {
	var px int
	switch n := utf8.RuneCountInString(text); {
	case n <= 20:
		px = 16
	case n <= 40:
		px = 15
	case n <= 60:
		px = 14
	case n <= 100:
		px = 13
	default:
		px = 12
	}
	if hasButtons {
		px--
		if px < 11 {
			px = 11
		}
	}
	return px
}
