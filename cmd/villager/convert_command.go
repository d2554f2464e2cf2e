package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"villager/internal/catalog"
	"villager/internal/config"
	"villager/internal/logging"
	"villager/internal/pack"
)

type convertOutcome struct {
	Archive string       `json:"archive"`
	Result  *pack.Result `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var overwrite bool
	var jobs int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "convert <archive>...",
		Short: "Split archives into linked packages",
		Long: `Convert reads each archive and writes a package directory holding
village.xml plus one period-N.xml per period. Packages land under the
configured library directory unless --out names a directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if outDir != "" && len(args) > 1 {
				return errors.New("--out accepts a single archive")
			}
			if !cmd.Flags().Changed("jobs") {
				jobs = cfg.Convert.Jobs
			}
			if jobs < 1 {
				return fmt.Errorf("--jobs must be at least 1, got %d", jobs)
			}
			overwrite = overwrite || cfg.Convert.Overwrite

			outcomes := make([]convertOutcome, len(args))
			errs := make([]error, len(args))
			err = ctx.withCatalog(func(store *catalog.Store) error {
				var g errgroup.Group
				g.SetLimit(jobs)
				for i, source := range args {
					g.Go(func() error {
						dir := outDir
						if dir == "" {
							dir = cfg.PackageDir(source)
						}
						res, err := convertArchive(cmd.Context(), logger, store, source, dir, overwrite)
						outcomes[i] = convertOutcome{Archive: source, Result: res}
						if err != nil {
							outcomes[i].Error = err.Error()
							errs[i] = fmt.Errorf("%s: %w", source, err)
						}
						return nil
					})
				}
				return g.Wait()
			})
			if err != nil {
				return err
			}
			var failures []error
			for _, err := range errs {
				if err != nil {
					failures = append(failures, err)
				}
			}

			if jsonOut {
				if err := writeJSON(cmd, outcomes); err != nil {
					return err
				}
			} else {
				printConvertOutcomes(cmd, outcomes)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d conversions failed: %w", len(failures), len(args), errors.Join(failures...))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Package directory (single archive only)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing packages")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", config.Default().Convert.Jobs, "Archives converted in parallel")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func convertArchive(ctx context.Context, logger *slog.Logger, store *catalog.Store, source, dir string, overwrite bool) (*pack.Result, error) {
	source, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve package path: %w", err)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	archiveLogger := logger.With(logging.String(logging.FieldArchive, filepath.Base(source)))
	res, err := pack.Convert(ctx, f, dir, pack.WithLogger(archiveLogger), pack.WithOverwrite(overwrite))
	if err != nil {
		logging.ErrorWithContext(archiveLogger, "conversion failed", "convert_failed",
			logging.Error(err),
			logging.String("dir", dir),
		)
		return nil, err
	}

	entry := catalog.Entry{
		Dir:         res.Dir,
		SourcePath:  source,
		VillageName: res.VillageName,
		VillageID:   res.VillageID,
		State:       res.State,
		Periods:     len(res.Periods),
		Elements:    res.Elements,
		RunID:       res.RunID,
		ConvertedAt: time.Now().UTC(),
	}
	if err := store.Record(ctx, entry); err != nil {
		return res, fmt.Errorf("record package: %w", err)
	}
	return res, nil
}

func printConvertOutcomes(cmd *cobra.Command, outcomes []convertOutcome) {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		row := []string{filepath.Base(o.Archive), "", "", "", ""}
		if o.Result != nil {
			row[1] = o.Result.Dir
			row[2] = strconv.Itoa(len(o.Result.Periods))
			row[3] = strconv.Itoa(o.Result.Elements)
		}
		if o.Error != "" {
			row[4] = cellText(o.Error)
		} else {
			row[4] = "ok"
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Archive", "Package", "Periods", "Elements", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}
