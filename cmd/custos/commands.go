package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"custos/internal/dataprocessing"
	"custos/internal/exporter"
	"custos/internal/infrastructure"
	"custos/pkg/contracts"
	"custos/pkg/contracts/domain"
)

type options struct {
	requireRowID bool
	verbose      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "custos",
		Short:        "Analyse expense spreadsheets",
		Long:         "custos reads an expense workbook (.xlsx or .xls), totals it by area, account and column, and rebuilds it as a clean spreadsheet.",
		Version:      contracts.GetFullVersionString(),
		SilenceUsage: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().BoolVar(&opts.requireRowID, "require-id", false, "Reject workbooks without an ID column")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(newAnalyzeCmd(opts), newExportCmd(opts), newSchemaCmd(opts))
	return root
}

func (o *options) logger(w io.Writer) *slog.Logger {
	cfg := infrastructure.DefaultConfig()
	cfg.Format = "text"
	cfg.Level = "warn"
	if o.verbose {
		cfg.Level = "debug"
	}
	return infrastructure.NewLogger(cfg, w)
}

// load reads and ingests one workbook
func (o *options) load(path string, logger *slog.Logger) (*domain.Dataset, error) {
	grid, err := dataprocessing.ParseFile(path)
	if err != nil {
		return nil, err
	}

	ds, err := dataprocessing.IngestWithOptions(grid, dataprocessing.IngestOptions{RequireRowID: o.requireRowID})
	if err != nil {
		return nil, err
	}

	if dups := dataprocessing.DuplicateRowIDs(ds); len(dups) > 0 {
		logger.Warn("Duplicate row ids, the first occurrence wins",
			slog.String("file", path),
			slog.Any("row_ids", dups))
	}
	logger.Debug("Workbook ingested",
		slog.String("file", path),
		slog.Int("rows", len(ds.Rows)),
		slog.Int("data_columns", len(ds.Schema.DataColumns())))
	return ds, nil
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	var (
		asJSON bool
		view   string
		csvOut bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Print the aggregated views of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := opts.load(args[0], opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			views := dataprocessing.ComputeViews(ds)
			out := cmd.OutOrStdout()

			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			case csvOut:
				wo, err := exporter.ViewOptions(view, views)
				if err != nil {
					return err
				}
				return exporter.WriteCSV(out, wo)
			default:
				return printViews(out, view, views)
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print every view as JSON")
	cmd.Flags().StringVar(&view, "view", exporter.ViewAreas, "View to print: areas, accounts, columns or zero-areas")
	cmd.Flags().BoolVar(&csvOut, "csv", false, "Print the selected view as CSV")
	cmd.MarkFlagsMutuallyExclusive("json", "csv")
	return cmd
}

// printViews renders one view as an aligned table with Brazilian formatting
func printViews(w io.Writer, view string, views domain.Views) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	switch view {
	case exporter.ViewAreas, exporter.ViewZeroAreas:
		areas := views.Areas
		if view == exporter.ViewZeroAreas {
			areas = views.ZeroAreas
		}
		fmt.Fprintln(tw, "Área\tTotal\t%\t")
		for _, a := range areas {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", a.Area, exporter.FormatCurrency(a.Total), exporter.FormatPercent(a.Percent))
		}
	case exporter.ViewAccounts:
		fmt.Fprintln(tw, "Conta\tLinhas\tTotal\t%\t")
		for _, a := range views.Accounts {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", a.Account, len(a.RowIDs), exporter.FormatCurrency(a.Total), exporter.FormatPercent(a.Percent))
		}
	case exporter.ViewColumns:
		fmt.Fprintln(tw, "Coluna\tÁrea\tTotal\t%\t")
		for _, c := range views.Columns {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", c.Column, c.Area, exporter.FormatCurrency(c.Total), exporter.FormatPercent(c.Percent))
		}
	default:
		return fmt.Errorf("unknown view %q", view)
	}

	fmt.Fprintf(tw, "Total geral\t%s\t\n", exporter.FormatCurrency(views.GrandTotal))
	return tw.Flush()
}

func newExportCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Rebuild a workbook as a clean spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd.ErrOrStderr())
			ds, err := opts.load(args[0], logger)
			if err != nil {
				return err
			}

			if output == "" {
				base := filepath.Base(args[0])
				output = filepath.Join(filepath.Dir(args[0]), exporter.ExportFileName(base))
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := exporter.NewWorkbookWriter(logger).Write(f, dataprocessing.ExportGrid(ds)); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", output, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: FILE_reconstruido.xlsx next to the input)")
	return cmd
}

func newSchemaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema FILE",
		Short: "Print the reconciled header of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grid, err := dataprocessing.ParseFile(args[0])
			if err != nil {
				return err
			}
			schema, err := dataprocessing.ReconcileHeader(grid, dataprocessing.IngestOptions{RequireRowID: opts.requireRowID})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tKind\tName\tArea\tSub")
			for _, c := range schema.Columns {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.Index, c.Kind, c.Name, c.Area, c.SubID)
			}
			return tw.Flush()
		},
	}
}
