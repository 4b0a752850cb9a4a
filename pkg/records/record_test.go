package records

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	d := testDescriptor(t)

	headers := []string{"certificate_number", "groom_name", "marriage_date", "claim_amount"}
	cells := []string{" MC001 ", "  John   Kamau ", "14/02/2019", "KES 2,500,000.00"}

	rec := Normalize(d, headers, cells, "upload.csv")

	if rec.Key != "MC001" || rec.KeyOrigin != KeyFromSource {
		t.Errorf("key = %q origin %v", rec.Key, rec.KeyOrigin)
	}
	if rec.Fields["groom_name"] != "John Kamau" {
		t.Errorf("groom_name = %q, want whitespace collapsed", rec.Fields["groom_name"])
	}
	if rec.Fields["marriage_date"] != "2019-02-14" {
		t.Errorf("marriage_date = %q", rec.Fields["marriage_date"])
	}
	if rec.Raw["marriage_date"] != "14/02/2019" {
		t.Errorf("raw date = %q, want original spelling kept", rec.Raw["marriage_date"])
	}
	if rec.Numbers["claim_amount"] != 2500000 {
		t.Errorf("claim_amount = %v", rec.Numbers["claim_amount"])
	}
	if rec.Raw["claim_amount"] != "KES 2,500,000.00" {
		t.Errorf("raw amount = %q", rec.Raw["claim_amount"])
	}
	if rec.Score != 75 {
		// Everything except bride_name present.
		t.Errorf("score = %d, want 75", rec.Score)
	}
	if len(rec.Missing) != 1 || rec.Missing[0] != "bride_name" {
		t.Errorf("missing = %v, want [bride_name]", rec.Missing)
	}
}

// Two raw columns can normalize to the same canonical field; the first
// non-empty cell wins.
func TestNormalize_FirstNonEmptyWins(t *testing.T) {
	d := testDescriptor(t)

	headers := []string{"certificate_number", "certificate_number"}
	rec := Normalize(d, headers, []string{"", "MC002"}, "a.csv")
	if rec.Fields["certificate_number"] != "MC002" {
		t.Errorf("empty first cell must not mask the second: %q", rec.Fields["certificate_number"])
	}

	rec = Normalize(d, headers, []string{"MC001", "MC002"}, "a.csv")
	if rec.Fields["certificate_number"] != "MC001" {
		t.Errorf("first value must win: %q", rec.Fields["certificate_number"])
	}
}

func TestNormalize_BadDateKeepsRaw(t *testing.T) {
	d := testDescriptor(t)

	rec := Normalize(d, []string{"certificate_number", "marriage_date"},
		[]string{"MC001", "sometime in 2019"}, "a.csv")

	if rec.Fields["marriage_date"] != "" {
		t.Errorf("field = %q, want cleared", rec.Fields["marriage_date"])
	}
	if rec.Raw["marriage_date"] != "sometime in 2019" {
		t.Errorf("raw = %q, want original kept", rec.Raw["marriage_date"])
	}
	if len(rec.Warnings) != 1 || !strings.Contains(rec.Warnings[0], "marriage_date") {
		t.Errorf("warnings = %v", rec.Warnings)
	}
}

func TestNormalize_ShortAndLongRows(t *testing.T) {
	d := testDescriptor(t)
	headers := []string{"certificate_number", "groom_name"}

	short := Normalize(d, headers, []string{"MC001"}, "a.csv")
	if short.Fields["groom_name"] != "" {
		t.Errorf("short row: groom_name = %q, want empty", short.Fields["groom_name"])
	}

	long := Normalize(d, headers, []string{"MC001", "John", "ignored", "ignored"}, "a.csv")
	if long.Fields["certificate_number"] != "MC001" || long.Fields["groom_name"] != "John" {
		t.Errorf("long row mangled: %+v", long.Fields)
	}
}

func TestRecord_Empty(t *testing.T) {
	d := testDescriptor(t)
	rec := Normalize(d, []string{"certificate_number", "groom_name"}, []string{"  ", ""}, "a.csv")
	if !rec.Empty() {
		t.Errorf("all-blank row not reported empty: %+v", rec.Fields)
	}
}

func TestFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"NGUGĨ", "ngugi"},
		{"Café Société", "cafe societe"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  a   b\tc ", "a b c"},
		{"\n", ""},
		{"one", "one"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
