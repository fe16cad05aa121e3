package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/qbank/internal/logging"
)

var (
	// ErrSourceNotFound is returned when the import source does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrNoFiles is returned when the source holds no .csv files.
	ErrNoFiles = errors.New("no csv files found in source")
)

// Importer runs the parse, map, filter and write pipeline over every file of
// a Source, one file at a time.
type Importer struct {
	source      Source
	store       Store
	mapper      *Mapper
	writer      *BatchWriter
	notifier    Notifier
	dryRun      bool
	maxFileSize int64
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithDryRun parses and maps every file but writes nothing and skips the
// final count.
func WithDryRun(dryRun bool) ImporterOption {
	return func(im *Importer) { im.dryRun = dryRun }
}

// WithMaxFileSize rejects files larger than n bytes. 0 disables the check.
func WithMaxFileSize(n int64) ImporterOption {
	return func(im *Importer) { im.maxFileSize = n }
}

// WithNotifier publishes every completed run.
func WithNotifier(n Notifier) ImporterOption {
	return func(im *Importer) { im.notifier = n }
}

// NewImporter creates an importer. source may be nil when only ImportFile
// is used.
func NewImporter(source Source, store Store, mapper *Mapper, writer *BatchWriter, opts ...ImporterOption) *Importer {
	im := &Importer{
		source: source,
		store:  store,
		mapper: mapper,
		writer: writer,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Run imports every .csv file of the source in listing order.
//
// It fails fast with ErrSourceNotFound or ErrNoFiles. Any later problem is
// recorded on the result: a file that cannot be read, a batch the store
// rejected, a failed count. Cancelling ctx marks the remaining batches
// failed; the partial result is still returned.
func (im *Importer) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{
		RunID:     uuid.NewString(),
		Source:    im.source.Location(),
		DryRun:    im.dryRun,
		StartedAt: time.Now(),
	}
	ctx = logging.WithRunID(ctx, res.RunID)
	logger := logging.FromContext(ctx)

	files, err := im.source.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, res.Source)
	}

	logger.Info("import started", "source", res.Source, "files", len(files), "dry_run", im.dryRun)

	for i, f := range files {
		fr := im.importSourceFile(ctx, i, f)
		res.Files = append(res.Files, fr)
		res.Imported += fr.Written
		for _, b := range fr.Batches {
			if b.Failure != nil {
				res.FailedBatches++
			}
		}
	}

	if !im.dryRun {
		count, err := im.store.Count(ctx)
		if err != nil {
			res.CountFailure = ClassifyFailure(FailureCount, err)
			logger.Warn("count failed", "code", res.CountFailure.Code, "error", err)
		} else {
			res.StoreCount = &count
		}
	}

	res.Duration = time.Since(res.StartedAt)
	logger.Info("import finished",
		"files", len(res.Files),
		"imported", res.Imported,
		"failed_batches", res.FailedBatches,
		"duration", res.Duration,
	)

	if im.notifier != nil {
		if err := im.notifier.RunCompleted(ctx, res); err != nil {
			logger.Warn("run notification failed", "error", err)
		}
	}

	return res, nil
}

func (im *Importer) importSourceFile(ctx context.Context, index int, f SourceFile) FileResult {
	rc, err := im.source.Open(ctx, f.Name)
	if err != nil {
		return im.readFailed(ctx, f.Name, err)
	}
	defer rc.Close()

	return im.ImportFile(ctx, f.Name, index, rc, f.Size)
}

// ImportFile runs one file through the pipeline. fileIndex feeds synthesized
// ids; size may be 0 when unknown.
func (im *Importer) ImportFile(ctx context.Context, name string, fileIndex int, r io.Reader, size int64) FileResult {
	logger := logging.WithFields(ctx, "file", name)

	raws, err := ParseReader(r, size, im.maxFileSize)
	if err != nil {
		return im.readFailed(ctx, name, err)
	}
	if len(raws) == 0 {
		logger.Info("file has no data rows")
	}

	recs := im.mapper.MapAll(raws, fileIndex)
	fr := FileResult{Name: name, Rows: len(raws), Valid: len(recs)}
	logger.Info("file parsed", "rows", fr.Rows, "valid", fr.Valid)

	if im.dryRun || len(recs) == 0 {
		return fr
	}

	wr := im.writer.Write(ctx, name, recs)
	fr.Written = wr.Written
	fr.Batches = wr.Batches
	return fr
}

func (im *Importer) readFailed(ctx context.Context, name string, err error) FileResult {
	f := ClassifyFailure(FailureRead, err)
	logging.FromContext(ctx).Warn("file read failed", "file", name, "code", f.Code, "error", err)
	return FileResult{Name: name, Failure: f}
}
