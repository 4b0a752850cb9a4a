package importer

import (
	"reflect"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"quoted comma", `a,"b,c",d`, []string{"a", "b,c", "d"}},
		{"escaped quote", `a,"say ""hi""",b`, []string{"a", `say "hi"`, "b"}},
		{"trailing comma keeps empty field", "a,b,", []string{"a", "b", ""}},
		{"empty fields", ",,", []string{"", "", ""}},
		{"unterminated quote captures remainder", `a,"b,c`, []string{"a", "b,c"}},
		{"parens inside quotes", `"PT CAUSE NO (STATION)",x`, []string{"PT CAUSE NO (STATION)", "x"}},
		{"single field", "only", []string{"only"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLine(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLine(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseLine_QuotedRoundTrip(t *testing.T) {
	// a,"b",c quoted as "a,""b"",c" decodes back to the literal.
	got := ParseLine(`"a,""b"",c"`)
	want := []string{`a,"b",c`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %q, want %q", got, want)
	}
}

func TestParseCSV(t *testing.T) {
	header, rows, err := ParseCSV("a,b\r\n1,2\n\n3,4\n")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if !reflect.DeepEqual(header, []string{"a", "b"}) {
		t.Errorf("header = %q", header)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank line skipped)", len(rows))
	}
	if !reflect.DeepEqual(rows[1].Cells, []string{"3", "4"}) {
		t.Errorf("rows[1] = %q", rows[1].Cells)
	}
}

// Dropped blank lines must not shift the line numbers reported for the rows
// after them.
func TestParseCSV_LineNumbers(t *testing.T) {
	_, rows, err := ParseCSV("a,b\n1,2\n\n\n3,4\n")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if rows[0].Line != 2 || rows[1].Line != 5 {
		t.Errorf("lines = %d, %d, want 2 and 5", rows[0].Line, rows[1].Line)
	}
}

func TestParseCSV_StructurallyEmpty(t *testing.T) {
	for _, text := range []string{"", "header,only\n", "\n\n  \n"} {
		if _, _, err := ParseCSV(text); err == nil {
			t.Errorf("ParseCSV(%q): want error for missing data rows", text)
		}
	}
}

func TestParseCSV_BOM(t *testing.T) {
	header, _, err := ParseCSV("\uFEFFname,year\nx,2020\n")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if header[0] != "name" {
		t.Errorf("header[0] = %q, want BOM stripped", header[0])
	}
}

func TestTranscode(t *testing.T) {
	// "café" in windows-1252.
	data := []byte{'c', 'a', 'f', 0xe9}
	out, err := Transcode(data, "windows-1252")
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if string(out) != "café" {
		t.Errorf("Transcode = %q, want café", out)
	}

	same, err := Transcode([]byte("plain"), "")
	if err != nil || string(same) != "plain" {
		t.Errorf("no-op transcode = %q, %v", same, err)
	}

	if _, err := Transcode([]byte("x"), "no-such-charset"); err == nil {
		t.Error("want error for unknown charset")
	}
}
