package records

import (
	"strings"
	"testing"

	"github.com/sheria-labs/registries/pkg/schema"
)

func testDescriptor(t *testing.T) *schema.Descriptor {
	t.Helper()
	d := &schema.Descriptor{
		ID: "test",
		Key: schema.KeySpec{
			Field:   "certificate_number",
			Compose: []string{"groom_name", "bride_name", "marriage_date"},
			Prefix:  "MR",
		},
		Fields: []schema.Field{
			{Name: "certificate_number", Required: true, Weight: 30},
			{Name: "groom_name", Required: true, Weight: 25},
			{Name: "bride_name", Required: true, Weight: 25},
			{Name: "marriage_date", Kind: schema.KindDate, Weight: 15},
			{Name: "claim_amount", Kind: schema.KindNumber, Weight: 5},
		},
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return d
}

func TestNaturalKey(t *testing.T) {
	d := testDescriptor(t)

	key, origin := NaturalKey(d, map[string]string{"certificate_number": "mc001"})
	if key != "MC001" || origin != KeyFromSource {
		t.Errorf("source key = %q origin %v, want MC001 from source", key, origin)
	}

	key, origin = NaturalKey(d, map[string]string{
		"groom_name":    "John Kamau",
		"bride_name":    "Mary Wanjiku",
		"marriage_date": "2019-02-14",
	})
	if key != "MR/JOHN KAMAU/MARY WANJIKU/2019-02-14" || origin != KeyComposed {
		t.Errorf("composed key = %q origin %v", key, origin)
	}

	// Partial compose set still yields a composed key from what is present.
	key, origin = NaturalKey(d, map[string]string{"groom_name": "John Kamau"})
	if key != "MR/JOHN KAMAU" || origin != KeyComposed {
		t.Errorf("partial composed key = %q origin %v", key, origin)
	}
}

func TestNaturalKey_ContentHashDeterministic(t *testing.T) {
	d := testDescriptor(t)
	fields := map[string]string{"claim_amount": "2500000", "unknown_col": "Ngugi"}

	k1, origin := NaturalKey(d, fields)
	if origin != KeyHashed {
		t.Fatalf("origin = %v, want hashed", origin)
	}
	if !strings.HasPrefix(k1, "MR-H") || len(k1) != len("MR-H")+12 {
		t.Errorf("hashed key shape = %q", k1)
	}

	// Same content, different map instance, accents and case folded away.
	k2, _ := NaturalKey(d, map[string]string{"claim_amount": "2500000", "unknown_col": "NGUGĨ"})
	if k1 != k2 {
		t.Errorf("hash not stable under folding: %q vs %q", k1, k2)
	}

	k3, _ := NaturalKey(d, map[string]string{"claim_amount": "2500001", "unknown_col": "Ngugi"})
	if k1 == k3 {
		t.Error("different content produced identical hash keys")
	}
}

func TestNaturalKey_Opaque(t *testing.T) {
	d := testDescriptor(t)

	k1, origin := NaturalKey(d, map[string]string{"certificate_number": "  "})
	if origin != KeyOpaque {
		t.Fatalf("origin = %v, want opaque", origin)
	}
	if !strings.HasPrefix(k1, "MR-") {
		t.Errorf("opaque key = %q, want MR- prefix", k1)
	}
	k2, _ := NaturalKey(d, map[string]string{})
	if k1 == k2 {
		t.Error("opaque keys must be unique")
	}
}
