// Package records holds the normalized record model shared by all four
// registries, plus the pure normalization steps applied to every imported
// row: value cleaning, date and amount parsing, natural-key synthesis,
// quality scoring and in-batch deduplication.
package records

import (
	"strings"

	"github.com/sheria-labs/registries/pkg/schema"
)

// Record is one normalized row of a registry import. Fields is keyed by
// canonical field name and also carries unknown passthrough columns; an empty
// string means absent. Raw preserves the original text wherever normalization
// changed or rejected a value, so a failed parse never loses information.
type Record struct {
	Key       string
	KeyOrigin KeyOrigin

	Fields  map[string]string
	Raw     map[string]string
	Numbers map[string]float64

	Score    int
	Missing  []string
	Warnings []string

	SourceFile string
	SourceTag  string
}

// Normalize converts one parsed CSV row into a Record. headers must already
// be canonical (schema.NormalizeHeaders); cells shorter than headers yield
// empty fields, extra cells are ignored.
func Normalize(d *schema.Descriptor, headers, cells []string, sourceFile string) *Record {
	rec := &Record{
		Fields:     make(map[string]string, len(headers)),
		Raw:        make(map[string]string),
		Numbers:    make(map[string]float64),
		SourceFile: sourceFile,
		SourceTag:  d.TagFor(sourceFile),
	}

	// First non-empty value wins when several raw columns map to the same
	// canonical field.
	for i, name := range headers {
		if i >= len(cells) {
			break
		}
		val := CleanText(cells[i])
		if val == "" {
			continue
		}
		if rec.Fields[name] != "" {
			continue
		}
		rec.Fields[name] = val
	}

	for i := range d.Fields {
		f := &d.Fields[i]
		val := rec.Fields[f.Name]
		if val == "" {
			continue
		}
		switch f.Kind {
		case schema.KindDate:
			if d.RawDates {
				// Estate registers keep date text as-is.
				continue
			}
			iso, err := NormalizeDate(val)
			if err != nil {
				rec.Raw[f.Name] = val
				rec.Fields[f.Name] = ""
				rec.Warnings = append(rec.Warnings, f.Name+": unparseable date "+quote(val))
				continue
			}
			if iso != val {
				rec.Raw[f.Name] = val
			}
			rec.Fields[f.Name] = iso
		case schema.KindNumber:
			n, err := ParseAmount(val)
			if err != nil {
				rec.Warnings = append(rec.Warnings, f.Name+": unparseable amount "+quote(val))
				continue
			}
			rec.Raw[f.Name] = val
			rec.Numbers[f.Name] = n
		}
	}

	rec.Key, rec.KeyOrigin = NaturalKey(d, rec.Fields)
	rec.Rescore(d)
	return rec
}

// Rescore recomputes Score and Missing from current field presence. Key
// synthesis problems stay visible: a non-source key keeps the key field on
// the missing list regardless of presence.
func (r *Record) Rescore(d *schema.Descriptor) {
	r.Score, r.Missing = Score(d, r.Fields)
	if r.KeyOrigin != KeyFromSource && !contains(r.Missing, d.Key.Field) {
		r.Missing = append(r.Missing, d.Key.Field)
	}
}

// Empty reports whether the record has no field values at all.
func (r *Record) Empty() bool {
	for _, v := range r.Fields {
		if v != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func quote(val string) string {
	return "\"" + strings.ReplaceAll(val, "\"", "'") + "\""
}
