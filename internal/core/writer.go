package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/qbank/internal/logging"
)

// DefaultBatchSize is the number of records sent in one upsert call.
const DefaultBatchSize = 50

// BatchWriter upserts records into a Store in fixed-size batches, one batch
// at a time. A failing batch is recorded and the next batch still runs.
type BatchWriter struct {
	store     Store
	batchSize int
	failedDir string
	progress  ProgressFunc
}

// WriterOption configures a BatchWriter.
type WriterOption func(*BatchWriter)

// WithFailedDir writes the records of failed batches to
// "<file> - failed.csv" inside dir.
func WithFailedDir(dir string) WriterOption {
	return func(w *BatchWriter) { w.failedDir = dir }
}

// WithProgress registers a callback invoked after every batch.
func WithProgress(fn ProgressFunc) WriterOption {
	return func(w *BatchWriter) { w.progress = fn }
}

// NewBatchWriter creates a writer. A non-positive batchSize uses DefaultBatchSize.
func NewBatchWriter(store Store, batchSize int, opts ...WriterOption) *BatchWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	w := &BatchWriter{store: store, batchSize: batchSize}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// BatchSize returns the configured batch size.
func (w *BatchWriter) BatchSize() int {
	return w.batchSize
}

// Write sends recs in contiguous batches. Written counts only the records of
// batches the store accepted. Once ctx is done the remaining batches are
// recorded as failed without calling the store.
func (w *BatchWriter) Write(ctx context.Context, file string, recs []OutputRecord) WriteResult {
	logger := logging.WithFields(ctx, "file", file)
	result := WriteResult{File: file, Total: len(recs)}
	batches := (len(recs) + w.batchSize - 1) / w.batchSize

	var failedRecs []OutputRecord
	var failedReasons []string

	for i := 0; i < batches; i++ {
		start := i * w.batchSize
		end := min(start+w.batchSize, len(recs))
		batch := recs[start:end]

		err := ctx.Err()
		if err == nil {
			err = w.store.Upsert(ctx, batch)
		}

		br := BatchResult{Index: i, Size: len(batch)}
		if err != nil {
			br.Failure = ClassifyFailure(FailureStore, err)
			logger.Warn("batch failed",
				"batch", i+1,
				"batches", batches,
				"records", len(batch),
				"code", br.Failure.Code,
				"error", br.Failure.Message,
			)
			failedRecs = append(failedRecs, batch...)
			for range batch {
				failedReasons = append(failedReasons, br.Failure.Message)
			}
		} else {
			result.Written += len(batch)
			logger.Debug("batch written", "batch", i+1, "batches", batches, "records", len(batch))
		}
		result.Batches = append(result.Batches, br)

		if w.progress != nil {
			w.progress(BatchProgress{
				File:    file,
				Batch:   i + 1,
				Batches: batches,
				Written: result.Written,
				Total:   len(recs),
				Failure: br.Failure,
			})
		}
	}

	if len(failedRecs) > 0 && w.failedDir != "" {
		path, err := writeFailedRecords(w.failedDir, file, failedRecs, failedReasons)
		if err != nil {
			logger.Error("failed writing failure file", "error", err)
		} else {
			logger.Info("failed records written", "path", path, "records", len(failedRecs))
		}
	}

	return result
}

// writeFailedRecords writes one row per record with the failure reason first.
func writeFailedRecords(dir, file string, recs []OutputRecord, reasons []string) (string, error) {
	safe := filepath.Base(file)
	name := fmt.Sprintf("%s - failed.csv", strings.TrimSuffix(safe, filepath.Ext(safe)))
	path := filepath.Join(dir, name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create failed dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(append([]string{"reason"}, OutputColumns...)); err != nil {
		return "", err
	}
	for i, rec := range recs {
		if err := cw.Write(append([]string{reasons[i]}, rec.Values()...)); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}

	return path, f.Close()
}
