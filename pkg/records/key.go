package records

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sheria-labs/registries/pkg/schema"
)

// KeyOrigin records how a natural key was obtained. Anything other than
// KeyFromSource is surfaced as a data-quality signal on the record.
type KeyOrigin int

const (
	// KeyFromSource: the key field itself was present in the file.
	KeyFromSource KeyOrigin = iota
	// KeyComposed: joined from other identifying fields, stable across
	// re-imports of the same logical record.
	KeyComposed
	// KeyHashed: content hash of all non-empty fields. Still deterministic,
	// so re-importing an identical unidentified row merges instead of
	// duplicating.
	KeyHashed
	// KeyOpaque: timestamp + random suffix, for rows with no usable content.
	KeyOpaque
)

// NaturalKey derives the record key per the descriptor's KeySpec. Preference
// order matters: meaningful keys beat opaque ones because a corrected
// re-export of the same record must collide and merge, not duplicate.
func NaturalKey(d *schema.Descriptor, fields map[string]string) (string, KeyOrigin) {
	if v := strings.TrimSpace(fields[d.Key.Field]); v != "" {
		return strings.ToUpper(v), KeyFromSource
	}

	var parts []string
	for _, name := range d.Key.Compose {
		if v := strings.TrimSpace(fields[name]); v != "" {
			parts = append(parts, strings.ToUpper(v))
		}
	}
	if len(parts) > 0 {
		return d.Key.Prefix + "/" + strings.Join(parts, "/"), KeyComposed
	}

	if h := contentHash(fields); h != "" {
		return d.Key.Prefix + "-H" + h, KeyHashed
	}

	return fmt.Sprintf("%s-%d-%s", d.Key.Prefix, time.Now().UnixMilli(),
		uuid.NewString()[:8]), KeyOpaque
}

// contentHash digests every non-empty field value, folded and in field-name
// order, to 12 hex chars. Empty records hash to "".
func contentHash(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name, v := range fields {
		if strings.TrimSpace(v) != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)

	h := sha1.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(Fold(fields[name])))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
