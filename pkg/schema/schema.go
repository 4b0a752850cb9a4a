package schema

import (
	"fmt"
	"strings"
)

// FieldKind drives value normalization and the SQL column type.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindDate   FieldKind = "date"
	KindNumber FieldKind = "number"
)

// Field is one canonical column of a registry.
type Field struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Required bool      `yaml:"required"`
	// Weight is this field's contribution to the 0-100 quality score.
	// The weights of one registry sum to exactly 100.
	Weight int `yaml:"weight"`
	// Aliases are the literal header spellings (lower-cased, trimmed) seen
	// in real exports for this field.
	Aliases []string `yaml:"aliases"`
	Example string   `yaml:"example"`
}

// FuzzyRule maps any header containing all of Contains to Field.
// Rules are tried in order after the alias table has no exact match.
type FuzzyRule struct {
	Contains []string `yaml:"contains"`
	Field    string   `yaml:"field"`
}

// KeySpec describes how the natural key of a record is obtained.
// Field is read first; when blank, the Compose fields present on the record
// are joined with "/" behind Prefix. Records with no identifying data at all
// fall through to a content-hash key (see records.SynthesizeKey).
type KeySpec struct {
	Field   string   `yaml:"field"`
	Compose []string `yaml:"compose"`
	Prefix  string   `yaml:"prefix"`
}

// SourceTag assigns a provenance tag when the source file name contains a
// marker (matched lower-cased).
type SourceTag struct {
	Contains string `yaml:"contains"`
	Tag      string `yaml:"tag"`
}

// Descriptor is the complete import schema of one registry. Everything that
// varies between the four registries lives here; the engine itself is
// registry-agnostic.
type Descriptor struct {
	ID         string      `yaml:"id"`
	Title      string      `yaml:"title"`
	Table      string      `yaml:"table"`
	Key        KeySpec     `yaml:"key"`
	ChunkSize  int         `yaml:"chunk_size"`
	RawDates   bool        `yaml:"raw_dates"`
	Fields     []Field     `yaml:"fields"`
	Fuzzy      []FuzzyRule `yaml:"fuzzy"`
	SourceTags []SourceTag `yaml:"source_tags"`
	DefaultTag string      `yaml:"default_tag"`

	aliases map[string]string // alias -> canonical name, built by Validate
	byName  map[string]*Field
}

// Validate checks internal consistency and builds the lookup indexes.
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("descriptor: missing id")
	}
	if d.Table == "" {
		d.Table = strings.ReplaceAll(d.ID, "-", "_")
	}
	if d.ChunkSize <= 0 {
		d.ChunkSize = 50
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("descriptor %s: no fields", d.ID)
	}

	d.aliases = make(map[string]string)
	d.byName = make(map[string]*Field, len(d.Fields))

	total := 0
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("descriptor %s: field %d has no name", d.ID, i)
		}
		if f.Kind == "" {
			f.Kind = KindText
		}
		if _, dup := d.byName[f.Name]; dup {
			return fmt.Errorf("descriptor %s: duplicate field %q", d.ID, f.Name)
		}
		d.byName[f.Name] = f
		total += f.Weight

		// A field's own name always resolves to itself.
		d.aliases[f.Name] = f.Name
		for _, a := range f.Aliases {
			d.aliases[strings.ToLower(strings.TrimSpace(a))] = f.Name
		}
	}
	if total != 100 {
		return fmt.Errorf("descriptor %s: field weights sum to %d, want 100", d.ID, total)
	}

	if d.Key.Field == "" {
		return fmt.Errorf("descriptor %s: missing key field", d.ID)
	}
	if _, ok := d.byName[d.Key.Field]; !ok {
		return fmt.Errorf("descriptor %s: key field %q not declared", d.ID, d.Key.Field)
	}
	for _, c := range d.Key.Compose {
		if _, ok := d.byName[c]; !ok {
			return fmt.Errorf("descriptor %s: key compose field %q not declared", d.ID, c)
		}
	}
	for _, r := range d.Fuzzy {
		if _, ok := d.byName[r.Field]; !ok {
			return fmt.Errorf("descriptor %s: fuzzy rule targets unknown field %q", d.ID, r.Field)
		}
		if len(r.Contains) == 0 {
			return fmt.Errorf("descriptor %s: fuzzy rule for %q has no markers", d.ID, r.Field)
		}
	}
	return nil
}

// FieldByName returns the declared field, or nil for synthetic columns.
func (d *Descriptor) FieldByName(name string) *Field {
	return d.byName[name]
}

// IsCanonical reports whether name is a declared field of this registry.
func (d *Descriptor) IsCanonical(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// DateFields lists the canonical names of all date fields.
func (d *Descriptor) DateFields() []string {
	var out []string
	for i := range d.Fields {
		if d.Fields[i].Kind == KindDate {
			out = append(out, d.Fields[i].Name)
		}
	}
	return out
}

// RequiredFields lists the canonical names of all required fields.
func (d *Descriptor) RequiredFields() []string {
	var out []string
	for i := range d.Fields {
		if d.Fields[i].Required {
			out = append(out, d.Fields[i].Name)
		}
	}
	return out
}

// TagFor derives the provenance tag from a source file name.
func (d *Descriptor) TagFor(filename string) string {
	lower := strings.ToLower(filename)
	for _, st := range d.SourceTags {
		if strings.Contains(lower, st.Contains) {
			return st.Tag
		}
	}
	return d.DefaultTag
}
