// Package phone normalizes caller numbers to E.164.
package phone

import (
	"errors"
	"strings"
	"unicode"
)

// ErrInvalidFormat is returned when a number cannot be normalized.
var ErrInvalidFormat = errors.New("invalid phone number format, must be 10 digits or include +91 country code")

// Normalize converts a raw phone number to E.164. Accepted inputs:
//
//	9876543210     -> +919876543210
//	09876543210    -> +919876543210
//	919876543210   -> +919876543210
//	+919876543210  -> +919876543210
func Normalize(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	switch {
	case len(d) == 10:
		return "+91" + d, nil
	case len(d) == 11 && strings.HasPrefix(d, "0"):
		return "+91" + d[1:], nil
	case (len(d) == 12 || len(d) == 13) && strings.HasPrefix(d, "91"):
		return "+" + d, nil
	default:
		return "", ErrInvalidFormat
	}
}
