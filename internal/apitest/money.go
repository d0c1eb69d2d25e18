package apitest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errInvalidAmount = errors.New("A valid number is required.")

// parseCents reads a decimal amount with at most two fractional digits.
func parseCents(s string) (int64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" || len(frac) > 2 {
		return 0, errInvalidAmount
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, errInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || cents < 0 {
		return 0, errInvalidAmount
	}
	if units < 0 {
		return units*100 - cents, nil
	}
	return units*100 + cents, nil
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
