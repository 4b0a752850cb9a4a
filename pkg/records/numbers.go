package records

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount parses monetary-ish values as they appear in exports:
// "KES 2,500,000.00", "Ksh. 1 200 000", "2500000/-". Currency words,
// thousands separators and trailing shilling notation are stripped; the
// caller keeps the raw string so nothing is lost on failure.
func ParseAmount(raw string) (float64, error) {
	var b strings.Builder
	lastDigit := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDigit = true
		case r == '.' && lastDigit:
			// A dot before any digit ("Ksh. 500") is abbreviation noise.
			b.WriteRune(r)
			lastDigit = false
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "-" {
		return 0, fmt.Errorf("no digits in %q", raw)
	}
	// More than one dot means the dots were thousands separators.
	if strings.Count(s, ".") > 1 {
		s = strings.ReplaceAll(s, ".", "")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return n, nil
}
