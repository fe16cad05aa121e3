package core

import (
	"context"
	"io"
	"strconv"
	"time"
)

// RawRecord maps a normalized header name to the trimmed value of one data line.
type RawRecord map[string]string

// OutputRecord is the fixed-schema record written to the store.
type OutputRecord struct {
	ID            string `json:"id" firestore:"id"`
	Category      string `json:"category" firestore:"category"`
	Topic         string `json:"topic" firestore:"topic"`
	BodyPrimary   string `json:"body_primary" firestore:"body_primary"`
	BodySecondary string `json:"body_secondary" firestore:"body_secondary"`
	Notes         string `json:"notes" firestore:"notes"`
	Tags          string `json:"tags" firestore:"tags"`
	StatusFlag    string `json:"status_flag" firestore:"status_flag"`
	Active        bool   `json:"active" firestore:"active"`
}

// OutputColumns lists the record fields in storage order.
var OutputColumns = []string{
	"id", "category", "topic", "body_primary", "body_secondary",
	"notes", "tags", "status_flag", "active",
}

// HasBody reports whether the record carries any question content.
// Records without body are dropped before writing.
func (r OutputRecord) HasBody() bool {
	return r.BodyPrimary != "" || r.BodySecondary != ""
}

// Values returns the record fields in OutputColumns order.
func (r OutputRecord) Values() []string {
	return []string{
		r.ID, r.Category, r.Topic, r.BodyPrimary, r.BodySecondary,
		r.Notes, r.Tags, r.StatusFlag, strconv.FormatBool(r.Active),
	}
}

// Store is the external record store. Upsert is keyed on OutputRecord.ID.
type Store interface {
	Upsert(ctx context.Context, recs []OutputRecord) error
	Count(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
	Close() error
}

// SourceFile describes one input file offered by a Source.
type SourceFile struct {
	Name string
	Size int64
}

// Source lists and opens input files. List returns files sorted by name
// and wraps ErrSourceNotFound when the location does not exist.
type Source interface {
	Location() string
	List(ctx context.Context) ([]SourceFile, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Notifier is told about every completed run.
type Notifier interface {
	RunCompleted(ctx context.Context, res *RunResult) error
}

// BatchProgress is reported after every batch of a file has been written.
type BatchProgress struct {
	File    string
	Batch   int // 1-based
	Batches int
	Written int // records written so far for this file
	Total   int // valid records of this file
	Failure *Failure
}

// Percent returns the share of batches processed (0-100).
func (p BatchProgress) Percent() int {
	if p.Batches == 0 {
		return 100
	}
	return p.Batch * 100 / p.Batches
}

// ProgressFunc receives batch progress. It is called synchronously.
type ProgressFunc func(BatchProgress)

// BatchResult is the outcome of one upsert call.
type BatchResult struct {
	Index   int      `json:"index"`
	Size    int      `json:"size"`
	Failure *Failure `json:"failure,omitempty"`
}

// WriteResult summarizes the batches written for one file.
type WriteResult struct {
	File    string        `json:"file"`
	Total   int           `json:"total"`
	Written int           `json:"written"`
	Batches []BatchResult `json:"batches,omitempty"`
}

// FailedBatches returns the number of batches that did not write.
func (w WriteResult) FailedBatches() int {
	n := 0
	for _, b := range w.Batches {
		if b.Failure != nil {
			n++
		}
	}
	return n
}

// FileResult is the per-file line of a run summary.
type FileResult struct {
	Name    string        `json:"name"`
	Rows    int           `json:"rows"`
	Valid   int           `json:"valid"`
	Written int           `json:"written"`
	Batches []BatchResult `json:"batches,omitempty"`
	Failure *Failure      `json:"failure,omitempty"`
}

// RunResult is the summary of one import run.
type RunResult struct {
	RunID         string        `json:"run_id"`
	Source        string        `json:"source"`
	DryRun        bool          `json:"dry_run"`
	Files         []FileResult  `json:"files"`
	Imported      int           `json:"imported"`
	FailedBatches int           `json:"failed_batches"`
	StoreCount    *int64        `json:"store_count"`
	CountFailure  *Failure      `json:"count_failure,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}
