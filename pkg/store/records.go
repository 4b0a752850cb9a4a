package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sheria-labs/registries/pkg/kit"
	"github.com/sheria-labs/registries/pkg/records"
	"github.com/sheria-labs/registries/pkg/schema"
)

// upsertSQL builds the INSERT ... ON CONFLICT statement for one registry.
// Conflicts on the natural key update every column (don't-ignore semantics),
// except created_at which keeps the first import's timestamp.
func upsertSQL(d *schema.Descriptor) (string, []string) {
	cols := []string{"natural_key"}
	for i := range d.Fields {
		cols = append(cols, d.Fields[i].Name)
		if d.Fields[i].Kind == schema.KindNumber {
			cols = append(cols, d.Fields[i].Name+"_value")
		}
	}
	cols = append(cols, "extras", "data_quality_score", "missing_fields",
		"import_warnings", "file_source", "data_source", "import_batch_id",
		"search_text", "created_at", "updated_at")

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	var updates []string
	for _, c := range cols[1:] {
		if c == "created_at" {
			continue
		}
		updates = append(updates, c+" = excluded."+c)
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
		ON CONFLICT(natural_key) DO UPDATE SET %s`,
		d.Table, strings.Join(cols, ", "), placeholders, strings.Join(updates, ", "))
	return q, cols
}

// args flattens one record into the column order produced by upsertSQL.
func args(ctx context.Context, d *schema.Descriptor, rec *records.Record, now int64) ([]any, error) {
	out := []any{rec.Key}
	for i := range d.Fields {
		f := &d.Fields[i]
		out = append(out, nullable(rec.Fields[f.Name]))
		if f.Kind == schema.KindNumber {
			if n, ok := rec.Numbers[f.Name]; ok {
				out = append(out, n)
			} else {
				out = append(out, nil)
			}
		}
	}

	extras := make(map[string]string)
	for name, v := range rec.Fields {
		if v != "" && !d.IsCanonical(name) {
			extras[name] = v
		}
	}
	for name, raw := range rec.Raw {
		extras[name+"_raw"] = raw
	}
	extrasJSON, err := marshalOrNil(extras)
	if err != nil {
		return nil, err
	}
	missingJSON, err := marshalOrNil(rec.Missing)
	if err != nil {
		return nil, err
	}
	warningsJSON, err := marshalOrNil(rec.Warnings)
	if err != nil {
		return nil, err
	}

	out = append(out, extrasJSON, rec.Score, missingJSON, warningsJSON,
		nullable(rec.SourceFile), nullable(rec.SourceTag),
		nullable(kit.GetBatchID(ctx)), searchText(d, rec), now, now)
	return out, nil
}

// BulkUpsert writes all records in one transaction: the whole slice lands
// or none of it does, which lets the import engine retry at a smaller
// granularity on failure.
func (s *Store) BulkUpsert(ctx context.Context, d *schema.Descriptor, recs []*records.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk upsert: %w", err)
	}
	defer tx.Rollback()

	q, _ := upsertSQL(d)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare upsert for %s: %w", d.Table, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, rec := range recs {
		a, err := args(ctx, d, rec, now)
		if err != nil {
			return fmt.Errorf("encode %s: %w", rec.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, a...); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.Key, err)
		}
	}
	return tx.Commit()
}

// Upsert persists a single record.
func (s *Store) Upsert(ctx context.Context, d *schema.Descriptor, rec *records.Record) error {
	q, _ := upsertSQL(d)
	a, err := args(ctx, d, rec, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Key, err)
	}
	if _, err := s.db.ExecContext(ctx, q, a...); err != nil {
		return fmt.Errorf("upsert %s: %w", rec.Key, err)
	}
	return nil
}

// StoredRecord is one persisted row as served by the search API.
type StoredRecord struct {
	Key        string            `json:"natural_key"`
	Fields     map[string]string `json:"fields"`
	Score      int               `json:"data_quality_score"`
	Missing    []string          `json:"missing_fields,omitempty"`
	Warnings   []string          `json:"import_warnings,omitempty"`
	FileSource string            `json:"file_source,omitempty"`
	DataSource string            `json:"data_source,omitempty"`
	BatchID    string            `json:"import_batch_id,omitempty"`
}

// Search returns up to limit records whose folded key or display fields
// contain q (accent-insensitive). An empty q lists the most recent imports.
func (s *Store) Search(ctx context.Context, d *schema.Descriptor, q string, limit int) ([]StoredRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var fieldCols []string
	for i := range d.Fields {
		fieldCols = append(fieldCols, d.Fields[i].Name)
	}
	sel := fmt.Sprintf(`SELECT natural_key, %s, data_quality_score,
		missing_fields, import_warnings, file_source, data_source, import_batch_id
		FROM %s`, strings.Join(fieldCols, ", "), d.Table)

	var rows *sql.Rows
	var err error
	if q = strings.TrimSpace(q); q != "" {
		sel += ` WHERE search_text LIKE ? ORDER BY updated_at DESC LIMIT ?`
		rows, err = s.db.QueryContext(ctx, sel, "%"+records.Fold(q)+"%", limit)
	} else {
		sel += ` ORDER BY updated_at DESC LIMIT ?`
		rows, err = s.db.QueryContext(ctx, sel, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", d.Table, err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		dest := make([]any, 0, len(fieldCols)+7)
		var key string
		vals := make([]sql.NullString, len(fieldCols))
		dest = append(dest, &key)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		var score int
		var missing, warnings, fileSource, dataSource, batchID sql.NullString
		dest = append(dest, &score, &missing, &warnings, &fileSource, &dataSource, &batchID)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", d.Table, err)
		}

		rec := StoredRecord{
			Key:        key,
			Fields:     make(map[string]string, len(fieldCols)),
			Score:      score,
			FileSource: fileSource.String,
			DataSource: dataSource.String,
			BatchID:    batchID.String,
		}
		for i, name := range fieldCols {
			if vals[i].Valid && vals[i].String != "" {
				rec.Fields[name] = vals[i].String
			}
		}
		unmarshalList(missing, &rec.Missing)
		unmarshalList(warnings, &rec.Warnings)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of persisted records for one registry.
func (s *Store) Count(ctx context.Context, d *schema.Descriptor) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+d.Table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", d.Table, err)
	}
	return n, nil
}

// searchText folds natural key plus all text field values into one haystack.
func searchText(d *schema.Descriptor, rec *records.Record) string {
	parts := []string{records.Fold(rec.Key)}
	for i := range d.Fields {
		if v := rec.Fields[d.Fields[i].Name]; v != "" {
			parts = append(parts, records.Fold(v))
		}
	}
	return strings.Join(parts, " ")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalOrNil(v any) (any, error) {
	switch t := v.(type) {
	case map[string]string:
		if len(t) == 0 {
			return nil, nil
		}
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalList(src sql.NullString, dst *[]string) {
	if src.Valid && src.String != "" {
		_ = json.Unmarshal([]byte(src.String), dst)
	}
}
