package schema

import (
	"strconv"
	"strings"
)

// NormalizeHeaders maps a raw header row to canonical field names, preserving
// order and length. Resolution per header:
//
//  1. exact match (lower-cased, trimmed) against the alias table
//  2. fuzzy keyword rules, in declaration order
//  3. the header cleaned down to [a-z0-9_] — unknown columns are kept, not
//     dropped
//  4. empty headers get an `empty_column_N` placeholder, N scoped to this
//     call, so two blank columns never overwrite each other
func (d *Descriptor) NormalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	empties := 0

	for i, h := range raw {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			out[i] = placeholderName(&empties, d)
			continue
		}

		if name, ok := d.aliases[key]; ok {
			out[i] = name
			continue
		}

		if name, ok := d.fuzzyMatch(key); ok {
			out[i] = name
			continue
		}

		cleaned := cleanHeader(key)
		if cleaned == "" {
			out[i] = placeholderName(&empties, d)
			continue
		}
		out[i] = cleaned
	}
	return out
}

func (d *Descriptor) fuzzyMatch(key string) (string, bool) {
	for _, r := range d.Fuzzy {
		all := true
		for _, marker := range r.Contains {
			if !strings.Contains(key, marker) {
				all = false
				break
			}
		}
		if all {
			return r.Field, true
		}
	}
	return "", false
}

// cleanHeader reduces a header to lowercase alphanumerics with single
// underscores ("Reg. Date (new)" -> "reg_date_new").
func cleanHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := true // suppress a leading underscore
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// placeholderName yields empty_column_0, empty_column_1, ... skipping any
// value that would shadow a declared field.
func placeholderName(counter *int, d *Descriptor) string {
	for {
		name := "empty_column_" + strconv.Itoa(*counter)
		*counter++
		if !d.IsCanonical(name) {
			return name
		}
	}
}
