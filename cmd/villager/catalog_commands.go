package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"villager/internal/archive"
	"villager/internal/catalog"
	"villager/internal/logging"
	"villager/internal/pack"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect converted packages",
	}

	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogRemoveCommand(ctx))
	catalogCmd.AddCommand(newCatalogCheckCommand(ctx))

	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List converted packages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(store *catalog.Store) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list catalog: %w", err)
				}
				if jsonOut {
					if entries == nil {
						entries = []catalog.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No packages converted yet")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						cellText(e.VillageName),
						e.State,
						strconv.Itoa(e.Periods),
						strconv.Itoa(e.Elements),
						e.ConvertedAt.Local().Format("2006-01-02 15:04"),
						e.Dir,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Village", "State", "Periods", "Elements", "Converted", "Package"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newCatalogRemoveCommand(ctx *commandContext) *cobra.Command {
	var deleteFiles bool

	cmd := &cobra.Command{
		Use:   "remove <package-dir>",
		Short: "Forget a package, optionally deleting its package files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve package path: %w", err)
			}
			return ctx.withCatalog(func(store *catalog.Store) error {
				removed, err := store.Remove(cmd.Context(), dir)
				if err != nil {
					return fmt.Errorf("remove catalog entry: %w", err)
				}
				if !removed {
					return fmt.Errorf("package %s is not in the catalog", dir)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed %s from the catalog\n", dir)
				if deleteFiles {
					removedDir, err := pack.Remove(dir)
					if err != nil {
						return fmt.Errorf("delete package files: %w", err)
					}
					if removedDir {
						fmt.Fprintf(out, "Deleted %s\n", dir)
					} else {
						fmt.Fprintf(out, "Deleted package files; kept %s because it holds other files\n", dir)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "Also delete the package files, and the directory once empty")
	return cmd
}

func newCatalogCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [package-dir]...",
		Short: "Verify catalogued packages can still be read",
		Long: `Check opens each named package, or every catalogued package when none
is named, and loads all of its periods.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(store *catalog.Store) error {
				entries, err := checkEntries(cmd, store, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Packages", colorize) {
					fmt.Fprintln(out, line)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, renderStatusLine("Catalog", statusInfo, "empty", colorize))
					return nil
				}

				broken := 0
				for _, e := range entries {
					err := checkPackage(cmd, e.Dir, cfg.Archive.PrefetchWorkers)
					kind, msg := packageStatus(err)
					if err != nil {
						broken++
						logging.WarnWithContext(logger, "catalogued package unreadable", "package_unreadable",
							logging.String("dir", e.Dir),
							logging.Error(err),
							logging.String(logging.FieldImpact, "package cannot be displayed"),
							logging.String(logging.FieldErrorHint, "re-run villager convert --overwrite on the source archive"),
						)
					}
					fmt.Fprintln(out, renderStatusLine(filepath.Base(e.Dir), kind, msg, colorize))
				}
				if broken > 0 {
					return fmt.Errorf("%d of %d packages failed the check", broken, len(entries))
				}
				return nil
			})
		},
	}
}

// checkEntries returns the catalog entries for dirs, or every entry when dirs
// is empty.
func checkEntries(cmd *cobra.Command, store *catalog.Store, dirs []string) ([]catalog.Entry, error) {
	if len(dirs) == 0 {
		entries, err := store.List(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("list catalog: %w", err)
		}
		return entries, nil
	}
	entries := make([]catalog.Entry, 0, len(dirs))
	for _, arg := range dirs {
		dir, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve package path: %w", err)
		}
		entry, err := store.Get(cmd.Context(), dir)
		if err != nil {
			return nil, fmt.Errorf("look up package: %w", err)
		}
		if entry == nil {
			return nil, fmt.Errorf("package %s is not in the catalog", dir)
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func checkPackage(cmd *cobra.Command, dir string, workers int) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	st, err := archive.OpenPackage(dir)
	if err != nil {
		return err
	}
	return st.Prefetch(cmd.Context(), workers)
}
