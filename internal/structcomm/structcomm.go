// Package structcomm implements Belgian structured payment communications
// ("gestructureerde mededeling"): 12 digits where the last two are a
// mod-97 checksum over the first ten, conventionally displayed as
// +++XXX/XXXX/XXXXX+++.
package structcomm

import (
	"fmt"
	"strconv"
	"strings"
)

const digitCount = 12

// Generate builds the structured communication for a booking id,
// returned as bare digits.
func Generate(bookingID int) string {
	base := fmt.Sprintf("%010d", bookingID)

	number, _ := strconv.ParseInt(base, 10, 64)
	checksum := int(number % 97)
	if checksum == 0 {
		checksum = 97
	}

	return base + fmt.Sprintf("%02d", checksum)
}

// Normalize strips formatting (+, /, -, *, spaces) and returns the bare
// digits, or "" when the input contains anything that is not formatting
// or a digit, or does not hold exactly 12 digits.
func Normalize(communication string) string {
	var digits strings.Builder
	for _, r := range communication {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == '/' || r == '-' || r == '*' || r == ' ':
			// formatting only
		default:
			return ""
		}
	}
	if digits.Len() != digitCount {
		return ""
	}
	return digits.String()
}

// Validate reports whether the communication (formatted or bare digits)
// carries a correct mod-97 checksum.
func Validate(communication string) bool {
	digits := Normalize(communication)
	if digits == "" {
		return false
	}

	number, err := strconv.ParseInt(digits[:10], 10, 64)
	if err != nil {
		return false
	}

	expected := int(number % 97)
	if expected == 0 {
		expected = 97
	}

	provided, err := strconv.Atoi(digits[10:])
	if err != nil {
		return false
	}
	return provided == expected
}

// ExtractBookingID returns the booking id encoded in a valid structured
// communication, or false when the communication is invalid.
func ExtractBookingID(communication string) (int, bool) {
	if !Validate(communication) {
		return 0, false
	}

	digits := Normalize(communication)
	bookingID, err := strconv.Atoi(digits[:10])
	if err != nil {
		return 0, false
	}
	return bookingID, true
}

// Format renders bare digits in the conventional +++XXX/XXXX/XXXXX+++ form.
// Input that is not exactly 12 digits is returned unchanged.
func Format(digits string) string {
	if len(digits) != digitCount {
		return digits
	}
	return fmt.Sprintf("+++%s/%s/%s+++", digits[:3], digits[3:7], digits[7:])
}
