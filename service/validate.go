package service

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

const (
	MinAmount = 1
	MaxAmount = 10000
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^09\d{8}$`)
	seatPattern  = regexp.MustCompile(`^[A-Z]\d{1,2}$`)
	cardPattern  = regexp.MustCompile(`^\d{16}$`)
)

// ValidateAmount rejects wallet amounts outside [MinAmount, MaxAmount].
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < MinAmount {
		return ErrInvalidAmount
	}
	if amount > MaxAmount {
		return ErrAmountTooLarge
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword requires 8+ characters with upper, lower, digit and one of !@#$%^&*.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune("!@#$%^&*", r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}

func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

func ValidateSeatLabel(label string) error {
	if !seatPattern.MatchString(label) {
		return ErrInvalidSeat
	}
	return nil
}

func ValidateCardNumber(number string) error {
	if !cardPattern.MatchString(number) {
		return ErrInvalidCardNumber
	}
	return nil
}

func normalizeSeats(seats []string) ([]string, error) {
	if len(seats) == 0 {
		return nil, ErrSeatsRequired
	}
	out := make([]string, 0, len(seats))
	seen := make(map[string]bool, len(seats))
	for _, seat := range seats {
		seat = strings.ToUpper(strings.TrimSpace(seat))
		if err := ValidateSeatLabel(seat); err != nil {
			return nil, err
		}
		if seen[seat] {
			continue
		}
		seen[seat] = true
		out = append(out, seat)
	}
	return out, nil
}
