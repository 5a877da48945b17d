package bank

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	bankerr "bankd/internal/errors"
)

// Amount is a quantity of money in cents.
type Amount int64

// MaxAmount caps any single balance or transaction so that sums stay far
// away from int64 overflow.
const MaxAmount Amount = 1_000_000_000_000_00

// ParseAmount parses a non-negative decimal such as "100", "30.5" or
// "0.07".  More than two fractional digits, signs, exponents and anything
// non-numeric are rejected with ErrInvalidAmount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, bankerr.ErrInvalidAmount
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, bankerr.ErrInvalidAmount
	}
	if !allDigits(whole) || !allDigits(frac) || len(frac) > 2 {
		return 0, bankerr.ErrInvalidAmount
	}

	var units int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n > int64(MaxAmount/100) {
			return 0, bankerr.ErrAmountTooLarge
		}
		units = n * 100
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	units += cents

	if Amount(units) > MaxAmount {
		return 0, bankerr.ErrAmountTooLarge
	}
	return Amount(units), nil
}

// String renders the amount with exactly two decimals.
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float returns the amount in currency units, for metrics.
func (a Amount) Float() float64 {
	return math.Round(float64(a)) / 100
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
