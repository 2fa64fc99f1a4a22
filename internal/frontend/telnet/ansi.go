// Package telnet provides the Telnet transport and ANSI styling used by the
// duel server.
package telnet

import (
	"fmt"
	"strings"
)

// ANSI escape code constants for terminal styling.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"

	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightCyan   = "\033[96m"
	BrightWhite  = "\033[97m"
)

// Colorize wraps text with the given ANSI color code and a reset suffix.
//
// Precondition: color must be a valid ANSI escape sequence.
// Postcondition: Returns text wrapped with the color code and Reset.
func Colorize(color, text string) string {
	return color + text + Reset
}

// Colorf wraps a formatted string with the given ANSI color code.
func Colorf(color, format string, args ...any) string {
	return color + fmt.Sprintf(format, args...) + Reset
}

// StripANSI removes all ANSI escape sequences from a string.
//
// Postcondition: Returns text with all \033[...m sequences removed.
func StripANSI(s string) string {
	result := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			if j < len(s) {
				i = j + 1
				continue
			}
		}
		result = append(result, s[i])
		i++
	}
	return string(result)
}

// HealthBar renders current out of max as a bar of width cells followed by
// the numeric value. Green above half, yellow above a fifth, red below.
//
// Precondition: width > 0.
// Postcondition: The bar always has exactly width cells; current is clamped to [0,max].
func HealthBar(current, max, width int) string {
	if current < 0 {
		current = 0
	}
	if max > 0 && current > max {
		current = max
	}
	filled := 0
	if max > 0 {
		filled = current * width / max
	}
	if current > 0 && filled == 0 {
		filled = 1
	}

	color := Green
	switch {
	case current*5 <= max:
		color = Red
	case current*2 <= max:
		color = Yellow
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		Colorize(color, strings.Repeat("#", filled)),
		strings.Repeat("-", width-filled),
		current, max,
	)
}

// PadRight pads s with spaces to width printable columns, ignoring ANSI codes.
func PadRight(s string, width int) string {
	n := len([]rune(StripANSI(s)))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
