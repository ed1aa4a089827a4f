package cardgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

// Supported PAN lengths for generation and card registration.
const (
	MinPANLength = 13
	MaxPANLength = 19
)

var (
	ErrInvalidInput  = errors.New("input must contain decimal digits only")
	ErrInvalidPrefix = errors.New("invalid prefix")
	ErrInvalidLength = errors.New("invalid length")
	ErrInvalidCount  = errors.New("invalid count")
)

// Checksum computes the Luhn sum of digits modulo 10. Starting from the rightmost
// digit, every second digit is doubled and folded back to a single digit.
// A number passes Luhn when the result is 0.
func Checksum(digits string) (int, error) {
	if digits == "" || !IsDigits(digits) {
		return 0, fmt.Errorf("checksum: %w", ErrInvalidInput)
	}
	sum, dbl := 0, false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	return sum % 10, nil
}

// IsValid reports whether number passes Luhn. Empty or non-numeric input is never valid.
func IsValid(number string) bool {
	sum, err := Checksum(number)
	return err == nil && sum == 0
}

// Generate returns a Luhn-valid number of exactly length digits that starts with prefix.
// Digits between the prefix and the check digit are uniformly random.
func Generate(prefix string, length int) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	if err := validateLength(length, len(prefix)+1); err != nil {
		return "", err
	}

	filler, err := randomDigits(length - len(prefix) - 1)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	body := prefix + filler
	// checksum of body with a trailing placeholder 0
	sum, err := Checksum(body + "0")
	if err != nil {
		return "", err
	}
	return body + string('0'+byte((10-sum)%10)), nil
}

// GenerateBatch calls Generate count times. Numbers are not de-duplicated.
func GenerateBatch(prefix string, count, length int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("count must be positive (got %d): %w", count, ErrInvalidCount)
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		n, err := Generate(prefix, length)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// GenerateWithSuffix returns a Luhn-valid number of length digits that starts with
// prefix and ends with suffix. The check digit belongs to the suffix, so the digit right
// before the suffix is solved instead; doubling is a bijection on 0..9, so one always fits.
func GenerateWithSuffix(prefix, suffix string, length int) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	if suffix == "" || !IsDigits(suffix) {
		return "", fmt.Errorf("suffix must be numeric: %w", ErrInvalidInput)
	}
	if err := validateLength(length, len(prefix)+len(suffix)+1); err != nil {
		return "", err
	}

	filler, err := randomDigits(length - len(prefix) - len(suffix) - 1)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	sum, err := Checksum(prefix + filler + "0" + suffix)
	if err != nil {
		return "", err
	}
	doubled := len(suffix)%2 == 1
	for x := 0; x < 10; x++ {
		w := x
		if doubled {
			w *= 2
			if w > 9 {
				w -= 9
			}
		}
		if (sum+w)%10 == 0 {
			return prefix + filler + string('0'+byte(x)) + suffix, nil
		}
	}
	return "", fmt.Errorf("no solving digit for suffix %s", suffix)
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix is required: %w", ErrInvalidPrefix)
	}
	if !IsDigits(prefix) {
		return fmt.Errorf("prefix must contain digits only: %w", ErrInvalidPrefix)
	}
	return nil
}

func validateLength(length, min int) error {
	if length < MinPANLength || length > MaxPANLength {
		return fmt.Errorf("length must be %d..%d (got %d): %w", MinPANLength, MaxPANLength, length, ErrInvalidLength)
	}
	if length < min {
		return fmt.Errorf("length %d leaves no room for a check digit: %w", length, ErrInvalidLength)
	}
	return nil
}

// randomDigits uses rejection sampling over crypto/rand so 0-9 stay uniform:
// only bytes < 250 are accepted before taking them mod 10.
func randomDigits(count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	const threshold = 250 // 256 - (256 % 10)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			if b := buf[i]; b < threshold {
				sb.WriteByte('0' + (b % 10))
			}
		}
	}
	return sb.String(), nil
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
