package records

import "github.com/sheria-labs/registries/pkg/schema"

// Deduplicate folds records sharing a natural key into one record per key,
// preserving first-seen order. Merging is first-non-empty-wins scanning in
// arrival order: a later record only fills fields the running merge still
// has empty. Returns the deduplicated list and the number of folded records.
//
// This handles duplicates inside one batch; duplicates against previously
// persisted data are resolved by the store's upsert.
func Deduplicate(d *schema.Descriptor, recs []*Record) ([]*Record, int) {
	byKey := make(map[string]*Record, len(recs))
	out := make([]*Record, 0, len(recs))
	duplicates := 0

	for _, rec := range recs {
		existing, ok := byKey[rec.Key]
		if !ok {
			byKey[rec.Key] = rec
			out = append(out, rec)
			continue
		}
		merge(existing, rec)
		existing.Rescore(d)
		duplicates++
	}
	return out, duplicates
}

func merge(dst, src *Record) {
	for name, v := range src.Fields {
		if v != "" && dst.Fields[name] == "" {
			dst.Fields[name] = v
			if raw, ok := src.Raw[name]; ok {
				dst.Raw[name] = raw
			}
			if n, ok := src.Numbers[name]; ok {
				dst.Numbers[name] = n
			}
		}
	}
	for _, w := range src.Warnings {
		if !contains(dst.Warnings, w) {
			dst.Warnings = append(dst.Warnings, w)
		}
	}
	// A duplicate carrying a genuine source key upgrades the merge's origin.
	if src.KeyOrigin < dst.KeyOrigin {
		dst.KeyOrigin = src.KeyOrigin
	}
}
