package records

import (
	"strings"

	"github.com/sheria-labs/registries/pkg/schema"
)

// Score computes the 0-100 completeness score: the sum of the weights of
// the declared fields that are present (non-empty after trim). Missing lists
// the absent required fields. Pure metadata for review UIs; a score of 0
// never blocks an import.
func Score(d *schema.Descriptor, fields map[string]string) (int, []string) {
	total := 0
	var missing []string
	for i := range d.Fields {
		f := &d.Fields[i]
		if strings.TrimSpace(fields[f.Name]) != "" {
			total += f.Weight
		} else if f.Required {
			missing = append(missing, f.Name)
		}
	}
	if total > 100 {
		total = 100
	}
	return total, missing
}
