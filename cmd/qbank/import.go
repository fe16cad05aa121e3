package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/qbank/internal/application"
	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/notify"
	"github.com/JonMunkholm/qbank/internal/source"
)

type importOptions struct {
	source   string
	dryRun   bool
	json     bool
	progress bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import every .csv file of the source and print a summary",
		Long: `Reads every .csv file of the source in name order, maps each row onto
the question schema, drops rows without question content and upserts the
rest in batches. A failed batch is reported and skipped; later batches and
files still run.

Exit codes: 2 configuration, 3 source missing or empty, 4 store unavailable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runImport(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "directory or gs://bucket/prefix to import (overrides IMPORT_SOURCE)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "parse and map without writing to the store")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the summary as one JSON object")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "render batch progress in the terminal")
	return cmd
}

func (a *app) runImport(ctx context.Context, out io.Writer, opts importOptions) error {
	if a.cfg.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Import.Timeout)
		defer cancel()
	}

	location := a.cfg.Import.Source
	if opts.source != "" {
		location = opts.source
	}

	src, err := source.Open(ctx, location)
	if err != nil {
		return withExitCode(exitSource, err)
	}
	defer src.Close()

	mapper, err := a.newMapper()
	if err != nil {
		return err
	}

	// A dry run never touches the store
	var st core.Store
	if !opts.dryRun {
		if st, err = a.openStore(ctx); err != nil {
			return err
		}
		defer st.Close()
	}

	notifier := notify.New(a.cfg.Notify)
	defer notifier.Close()

	writerOpts := []core.WriterOption{core.WithFailedDir(a.cfg.Import.FailedDir)}
	var view *application.View
	if opts.progress {
		view = application.NewView(out, src.Location())
		writerOpts = append(writerOpts, core.WithProgress(view.Report))
	}

	im := core.NewImporter(src, st, mapper,
		core.NewBatchWriter(st, a.cfg.Import.BatchSize, writerOpts...),
		core.WithDryRun(opts.dryRun),
		core.WithMaxFileSize(a.cfg.Import.MaxFileSize),
		core.WithNotifier(notifier),
	)

	var res *core.RunResult
	if view != nil {
		res, err = view.Run(ctx, im.Run)
	} else {
		res, err = im.Run(ctx)
	}
	if err != nil {
		if errors.Is(err, core.ErrSourceNotFound) || errors.Is(err, core.ErrNoFiles) {
			return withExitCode(exitSource, err)
		}
		return err
	}

	if opts.json {
		return json.NewEncoder(out).Encode(res)
	}
	printSummary(out, res)
	return nil
}

// printSummary writes the human-readable run summary.
func printSummary(w io.Writer, res *core.RunResult) {
	mode := ""
	if res.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Found %d CSV files in %s%s\n", len(res.Files), res.Source, mode)

	for _, f := range res.Files {
		if f.Failure != nil {
			fmt.Fprintf(w, "  %s: not read: %s (%s)\n", f.Name, f.Failure.Message, f.Failure.Code)
			continue
		}
		fmt.Fprintf(w, "  %s: %d rows found, %d valid", f.Name, f.Rows, f.Valid)
		if !res.DryRun {
			fmt.Fprintf(w, ", %d imported", f.Written)
		}
		fmt.Fprintln(w)
		for _, b := range f.Batches {
			if b.Failure != nil {
				fmt.Fprintf(w, "    batch %d (%d records) failed: %s (%s)\n", b.Index+1, b.Size, b.Failure.Message, b.Failure.Code)
			}
		}
	}

	if res.DryRun {
		return
	}

	fmt.Fprintf(w, "Imported %d records", res.Imported)
	if res.FailedBatches > 0 {
		fmt.Fprintf(w, ", %d batches failed", res.FailedBatches)
	}
	fmt.Fprintln(w)

	switch {
	case res.StoreCount != nil:
		fmt.Fprintf(w, "Store now holds %d records\n", *res.StoreCount)
	case res.CountFailure != nil:
		fmt.Fprintf(w, "Store count unavailable: %s (%s)\n", res.CountFailure.Message, res.CountFailure.Code)
	}
}
