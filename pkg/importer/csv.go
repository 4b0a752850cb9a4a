package importer

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ParseLine tokenizes one CSV line. Commas inside double-quote pairs are not
// separators and "" inside a quoted field decodes to a literal quote. Single
// pass, never fails: an unterminated quote simply captures the remainder of
// the line, and a trailing comma yields an empty final field.
func ParseLine(line string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false

	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				b.WriteByte('"')
				i += 2
				continue
			}
			inQuotes = !inQuotes
			i++
		case c == ',' && !inQuotes:
			fields = append(fields, b.String())
			b.Reset()
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	fields = append(fields, b.String())
	return fields
}

// Row is one tokenized data row. Line is its 1-based line number in the
// original file, so error messages stay accurate when blank lines were
// dropped before it.
type Row struct {
	Line  int
	Cells []string
}

// ParseCSV splits raw CSV text into the header row and data rows. Blank
// lines are dropped. This is the engine's only synchronous failure: a file
// without at least a header and one data row is rejected outright.
func ParseCSV(text string) (header []string, rows []Row, err error) {
	headerLine := ""
	headerSeen := false
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !headerSeen {
			headerLine = line
			headerSeen = true
			continue
		}
		rows = append(rows, Row{Line: n + 1, Cells: ParseLine(line)})
	}
	if !headerSeen || len(rows) == 0 {
		return nil, nil, fmt.Errorf("CSV must contain a header row and at least one data row")
	}

	return ParseLine(stripBOM(headerLine)), rows, nil
}

// Transcode converts file bytes to UTF-8 per a declared charset ("" or any
// utf-8 spelling is a no-op).
func Transcode(data []byte, charset string) ([]byte, error) {
	c := strings.ToLower(strings.ReplaceAll(charset, "-", ""))
	if c == "" || c == "utf8" {
		return data, nil
	}
	e, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	out, _, err := transform.Bytes(e.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("transcode from %s: %w", charset, err)
	}
	return out, nil
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
