package state

import (
	"regexp"
	"unicode/utf8"
)

// MinPasswordScore is the lowest strength score accepted at registration (medium)
const MinPasswordScore = 3

// Password strength levels
const (
	StrengthWeak       = "weak"
	StrengthMedium     = "medium"
	StrengthStrong     = "strong"
	StrengthVeryStrong = "very-strong"
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// PasswordChecks lists which strength rules a password satisfies
type PasswordChecks struct {
	Length    bool `json:"length"`
	Uppercase bool `json:"uppercase"`
	Lowercase bool `json:"lowercase"`
	Number    bool `json:"number"`
	Special   bool `json:"special"`
}

// PasswordStrength is the result of ValidatePassword
type PasswordStrength struct {
	Checks     PasswordChecks `json:"checks"`
	Score      int            `json:"score"`
	Strength   string         `json:"strength"`
	Percentage float64        `json:"percentage"`
}

// ValidatePassword scores a password against five rules
func ValidatePassword(password string) PasswordStrength {
	checks := PasswordChecks{
		Length:    utf8.RuneCountInString(password) >= 8,
		Uppercase: upperRe.MatchString(password),
		Lowercase: lowerRe.MatchString(password),
		Number:    digitRe.MatchString(password),
		Special:   specialRe.MatchString(password),
	}

	score := 0
	for _, ok := range []bool{checks.Length, checks.Uppercase, checks.Lowercase, checks.Number, checks.Special} {
		if ok {
			score++
		}
	}

	strength := StrengthVeryStrong
	switch {
	case score <= 2:
		strength = StrengthWeak
	case score == 3:
		strength = StrengthMedium
	case score == 4:
		strength = StrengthStrong
	}

	return PasswordStrength{
		Checks:     checks,
		Score:      score,
		Strength:   strength,
		Percentage: float64(score) / 5 * 100,
	}
}
