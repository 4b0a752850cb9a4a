package records

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeDate parses the date spellings that show up in registry exports
// and returns ISO YYYY-MM-DD. Accepted inputs:
//
//	DD/MM/YYYY   DD-MM-YYYY   DD.MM.YYYY   (day and month may be 1 digit)
//	YYYY-MM-DD   with an optional time suffix after ' ' or 'T'
//
// Two-digit years expand 00-50 to 2000s and 51-99 to 1900s. The day is
// validated against the real month length, leap years included.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}

	// ISO first: YYYY-MM-DD, optionally followed by a time.
	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		datePart := s[:10]
		if len(s) > 10 && s[10] != ' ' && s[10] != 'T' {
			return "", fmt.Errorf("malformed date %q", raw)
		}
		year, err1 := strconv.Atoi(datePart[:4])
		month, err2 := strconv.Atoi(datePart[5:7])
		day, err3 := strconv.Atoi(datePart[8:10])
		if err1 != nil || err2 != nil || err3 != nil {
			return "", fmt.Errorf("malformed date %q", raw)
		}
		return isoDate(year, month, day, raw)
	}

	sep := ""
	for _, c := range []string{"/", "-", "."} {
		if strings.Count(s, c) == 2 {
			sep = c
			break
		}
	}
	if sep == "" {
		return "", fmt.Errorf("unrecognized date format %q", raw)
	}

	parts := strings.Split(s, sep)
	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	yearStr := strings.TrimSpace(parts[2])
	year, err3 := strconv.Atoi(yearStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", fmt.Errorf("malformed date %q", raw)
	}

	switch len(yearStr) {
	case 4:
	case 2:
		if year <= 50 {
			year += 2000
		} else {
			year += 1900
		}
	default:
		return "", fmt.Errorf("malformed year in %q", raw)
	}

	return isoDate(year, month, day, raw)
}

func isoDate(year, month, day int, raw string) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month out of range in %q", raw)
	}
	if day < 1 || day > daysInMonth(year, month) {
		return "", fmt.Errorf("day out of range in %q", raw)
	}
	if year < 1800 || year > 2200 {
		return "", fmt.Errorf("year out of range in %q", raw)
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	}
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 29
	}
	return 28
}
