package cardgen

import (
	"errors"
	"fmt"
	"strings"
)

// MaskChar replaces every PAN digit except the last four.
const MaskChar = "*"

var ErrInvalidCard = errors.New("invalid card")

// Record holds the PAN-derived fields that are safe to persist.
type Record struct {
	PANMasked string
	Last4     string
	BIN       string
	Network   string
}

// Build derives a Record from a raw card number. All non-digit characters are
// stripped first; the result must be 13..19 digits and pass Luhn.
// The full PAN is not part of the result.
func Build(pan string) (Record, error) {
	digits := NormalizePAN(pan)
	if l := len(digits); l < MinPANLength || l > MaxPANLength {
		return Record{}, fmt.Errorf("%w: pan length must be %d..%d digits (got %d)", ErrInvalidCard, MinPANLength, MaxPANLength, l)
	}
	if !IsValid(digits) {
		return Record{}, fmt.Errorf("%w: luhn check failed", ErrInvalidCard)
	}
	return Record{
		PANMasked: MaskPAN(digits),
		Last4:     LastN(digits, 4),
		BIN:       digits[:6],
		Network:   Network(digits),
	}, nil
}

// NormalizePAN drops every character that is not a decimal digit.
func NormalizePAN(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// MaskPAN keeps only the last four digits visible.
func MaskPAN(pan string) string {
	n := len(pan)
	if n <= 4 {
		return strings.Repeat(MaskChar, n)
	}
	return strings.Repeat(MaskChar, n-4) + pan[n-4:]
}
