package schema

import "strings"

// Template renders the download template for this registry: the canonical
// header row plus one example row. Uploads built from it hit the exact-match
// path of header normalization.
func (d *Descriptor) Template() []byte {
	var b strings.Builder
	for i := range d.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(csvQuote(d.Fields[i].Name))
	}
	b.WriteByte('\n')
	for i := range d.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(csvQuote(d.Fields[i].Example))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func csvQuote(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
