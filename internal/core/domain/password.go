package domain

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// commonPasswords is a short deny-list of the most reused passwords.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "11111111": {},
	"00000000": {}, "abc12345": {}, "abcd1234": {}, "letmein1": {}, "welcome1": {},
	"sunshine": {}, "princess": {}, "football": {}, "baseball": {}, "superman": {},
	"trustno1": {}, "passw0rd": {}, "admin123": {}, "changeme": {}, "starwars": {},
}

// ValidatePassword applies the strength rules: length bounds, not entirely
// numeric, not a common password, and not containing any of the user
// attributes (email local part, names) of four or more characters.
func ValidatePassword(password string, attributes ...string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must contain at least %d characters", ErrWeakPassword, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: must contain at most %d characters", ErrWeakPassword, MaxPasswordLength)
	}
	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return fmt.Errorf("%w: cannot be entirely numeric", ErrWeakPassword)
	}
	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return fmt.Errorf("%w: too common", ErrWeakPassword)
	}
	for _, attr := range attributes {
		attr, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(attr)), "@")
		if len(attr) >= 4 && strings.Contains(lower, attr) {
			return fmt.Errorf("%w: too similar to personal information", ErrWeakPassword)
		}
	}
	return nil
}
