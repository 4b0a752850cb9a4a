// Package importer drives the CSV bulk-import pipeline:
// parse -> normalize -> dedup -> persist, in chunks, with progress reporting
// and cooperative cancellation. One Engine serves one registry; the
// registry-specific knowledge all comes from the schema descriptor.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sheria-labs/registries/pkg/records"
	"github.com/sheria-labs/registries/pkg/schema"
)

// Sink is the upsert-capable persistence collaborator. BulkUpsert applies
// insert-or-update-on-conflict semantics keyed on the natural key for the
// whole slice, atomically or not at all; Upsert persists a single record.
type Sink interface {
	BulkUpsert(ctx context.Context, d *schema.Descriptor, recs []*records.Record) error
	Upsert(ctx context.Context, d *schema.Descriptor, rec *records.Record) error
}

// Engine imports CSV batches for one registry.
type Engine struct {
	desc   *schema.Descriptor
	sink   Sink
	logger *slog.Logger
}

func New(desc *schema.Descriptor, sink Sink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{desc: desc, sink: sink, logger: logger}
}

// Request describes one upload.
type Request struct {
	FileName string
	Data     []byte
	Charset  string // optional; transcode before parsing
	BatchID  string // correlation only; persisted batch rows belong to the store
	Progress ProgressFunc
}

// subChunkSize is the granularity of the first persistence retry after a
// bulk upsert failure.
const subChunkSize = 25

// Import runs the whole pipeline and always resolves failures into the
// returned Result; the only non-nil error is a structurally empty or
// undecodable file. Cancellation via ctx is observed at chunk boundaries:
// the running chunk finishes, no new chunk starts, partial counts survive.
func (e *Engine) Import(ctx context.Context, req Request) (res *Result, err error) {
	res = &Result{Errors: []string{}, Warnings: []string{}, BatchID: req.BatchID}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("import panic", "registry", e.desc.ID, "batch", req.BatchID, "panic", r)
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("internal error: %v", r))
		}
	}()

	data, err := Transcode(req.Data, req.Charset)
	if err != nil {
		return nil, err
	}
	header, rows, err := ParseCSV(string(data))
	if err != nil {
		return nil, err
	}

	headers := e.desc.NormalizeHeaders(header)
	total := len(rows)
	progress := newProgressTracker(req.Progress)
	progress.report(0, fmt.Sprintf("Parsed %d rows", total), 0, total)

	e.logger.Info("import started",
		"registry", e.desc.ID, "batch", req.BatchID,
		"file", req.FileName, "rows", total)

	// Normalize in chunks; a bad row is skipped, never aborts the batch.
	recs := make([]*records.Record, 0, total)
	chunk := e.desc.ChunkSize
	for start := 0; start < total; start += chunk {
		if ctx.Err() != nil {
			return e.cancelled(res, progress, len(recs), total), nil
		}
		end := start + chunk
		if end > total {
			end = total
		}
		for i := start; i < end; i++ {
			rec, rowErr := e.normalizeRow(headers, rows[i].Cells, req.FileName)
			if rowErr != nil {
				res.Skipped++
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", rows[i].Line, rowErr))
				continue
			}
			if rec == nil {
				continue // blank row
			}
			for _, w := range rec.Warnings {
				res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: %s", rows[i].Line, w))
			}
			recs = append(recs, rec)
		}
		progress.report(80*end/total,
			fmt.Sprintf("Normalized %d of %d records", end, total), end, total)
	}

	if ctx.Err() != nil {
		return e.cancelled(res, progress, len(recs), total), nil
	}

	deduped, duplicates := records.Deduplicate(e.desc, recs)
	res.Duplicates = duplicates
	progress.report(87, fmt.Sprintf("Deduplicated to %d records", len(deduped)), len(deduped), total)

	if ctx.Err() != nil {
		return e.cancelled(res, progress, len(deduped), total), nil
	}

	persisted, persistErrs := e.persist(ctx, deduped)
	res.Imported = persisted
	res.Skipped += len(persistErrs)
	res.Errors = append(res.Errors, persistErrs...)

	// Cancellation during persistence keeps whatever counts had accumulated
	// but must never read as a successful run.
	if ctx.Err() != nil {
		return e.cancelled(res, progress, persisted, total), nil
	}

	progress.report(100, fmt.Sprintf("Imported %d records", persisted), persisted, total)
	res.Success = len(res.Errors) == 0

	e.logger.Info("import finished",
		"registry", e.desc.ID, "batch", req.BatchID,
		"imported", res.Imported, "skipped", res.Skipped,
		"duplicates", res.Duplicates, "errors", len(res.Errors))
	return res, nil
}

// normalizeRow converts one data row, turning a panic into a row error.
func (e *Engine) normalizeRow(headers, cells []string, file string) (rec *records.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("normalize: %v", r)
		}
	}()
	rec = records.Normalize(e.desc, headers, cells, file)
	if rec.Empty() {
		return nil, nil
	}
	return rec, nil
}

// persist writes the deduplicated set. One bulk upsert first; on failure it
// degrades to sub-chunks, then to one row at a time so a single malformed
// record cannot sink the batch. Returns the persisted count and per-key
// error messages.
func (e *Engine) persist(ctx context.Context, recs []*records.Record) (int, []string) {
	if len(recs) == 0 {
		return 0, nil
	}
	if err := e.sink.BulkUpsert(ctx, e.desc, recs); err == nil {
		return len(recs), nil
	} else if ctx.Err() == nil {
		e.logger.Warn("bulk upsert failed, retrying in sub-chunks",
			"registry", e.desc.ID, "records", len(recs), "error", err)
	}

	persisted := 0
	var errs []string
	for start := 0; start < len(recs); start += subChunkSize {
		if ctx.Err() != nil {
			break
		}
		end := start + subChunkSize
		if end > len(recs) {
			end = len(recs)
		}
		sub := recs[start:end]
		if err := e.sink.BulkUpsert(ctx, e.desc, sub); err == nil {
			persisted += len(sub)
			continue
		}
		for _, rec := range sub {
			if err := e.upsertOne(ctx, rec); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", rec.Key, err))
				continue
			}
			persisted++
		}
	}
	return persisted, errs
}

// upsertOne persists a single record. Estate rows hitting a date-range
// constraint get one retry with every date field nulled; legacy free-text
// dates are not worth losing the whole row over.
func (e *Engine) upsertOne(ctx context.Context, rec *records.Record) error {
	err := e.sink.Upsert(ctx, e.desc, rec)
	if err == nil {
		return nil
	}
	if e.desc.RawDates && isDateRangeError(err) {
		retry := *rec
		retry.Fields = make(map[string]string, len(rec.Fields))
		for k, v := range rec.Fields {
			retry.Fields[k] = v
		}
		for _, name := range e.desc.DateFields() {
			retry.Fields[name] = ""
		}
		if retryErr := e.sink.Upsert(ctx, e.desc, &retry); retryErr == nil {
			e.logger.Warn("record persisted with dates cleared",
				"registry", e.desc.ID, "key", rec.Key, "error", err)
			return nil
		}
	}
	return err
}

func isDateRangeError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "date") &&
		(strings.Contains(msg, "range") || strings.Contains(msg, "out of") ||
			strings.Contains(msg, "invalid"))
}

func (e *Engine) cancelled(res *Result, p *progressTracker, current, total int) *Result {
	res.Cancelled = true
	res.Success = false
	p.report(p.last, "Import cancelled", current, total)
	e.logger.Info("import cancelled",
		"registry", e.desc.ID, "batch", res.BatchID,
		"skipped", res.Skipped, "duplicates", res.Duplicates)
	return res
}

// progressTracker clamps reports so the percentage never decreases.
type progressTracker struct {
	fn   ProgressFunc
	last int
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn}
}

func (p *progressTracker) report(progress int, message string, current, total int) {
	if progress < p.last {
		progress = p.last
	}
	p.last = progress
	if p.fn != nil {
		p.fn(progress, message, current, total)
	}
}
