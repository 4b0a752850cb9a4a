package importer

// Result is the one output that survives an import call; the surrounding UI
// renders errors and warnings verbatim. Success means the run reached the
// end with no row-level errors; a false Success still carries whatever
// partial counts had accumulated.
type Result struct {
	Success    bool     `json:"success"`
	Cancelled  bool     `json:"cancelled,omitempty"`
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	BatchID    string   `json:"batch_id,omitempty"`
}

// ProgressFunc receives progress updates during an import. progress is
// 0-100 and never decreases; current/total are record counts when known.
type ProgressFunc func(progress int, message string, current, total int)
