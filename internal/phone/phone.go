// Package phone normalizes user-entered phone numbers to E.164.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultCountryCode is prefixed to bare national numbers.
const DefaultCountryCode = "1"

// ErrInvalid reports input that cannot be normalized.
var ErrInvalid = errors.New("phone: invalid number")

var (
	keepDigitsPlus = regexp.MustCompile(`[^\d+]`)
	nonDigits      = regexp.MustCompile(`\D`)
	e164           = regexp.MustCompile(`^\+\d{8,15}$`)
	national       = regexp.MustCompile(`^\d{10}$`)
)

// Normalize converts text to E.164 using countryCode for 10-digit numbers.
// An empty countryCode means DefaultCountryCode.
func Normalize(text, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	s := keepDigitsPlus.ReplaceAllString(strings.TrimSpace(text), "")
	if s == "" {
		return "", ErrInvalid
	}
	if strings.HasPrefix(s, "+") && e164.MatchString(s) {
		return s, nil
	}
	digits := nonDigits.ReplaceAllString(s, "")
	if national.MatchString(digits) {
		return "+" + countryCode + digits, nil
	}
	if len(digits) == 10+len(countryCode) && strings.HasPrefix(digits, countryCode) {
		return "+" + digits, nil
	}
	return "", ErrInvalid
}
