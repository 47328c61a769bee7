package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/importer"
)

type importOptions struct {
	Mode             string
	DryRun           bool
	AutoCreateFields bool
	ReportPath       string
}

func newImportCmd(global *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import contacts from a CSV or XLSX file",
		Long: "Import contacts from a CSV or XLSX file and print the result as JSON.\n" +
			"With --dry-run the file is validated and previewed without writing anything.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := importer.ParseMode(opts.Mode)
			if err != nil {
				return err
			}
			if opts.DryRun && opts.ReportPath != "" {
				return errors.New("--report cannot be combined with --dry-run")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			service, closeStore, err := openService(cmd.Context(), global)
			if err != nil {
				return err
			}
			defer closeStore()

			req := core.ImportRequest{
				FileName:         filepath.Base(args[0]),
				Data:             data,
				Mode:             mode,
				AutoCreateFields: opts.AutoCreateFields,
			}

			if opts.DryRun {
				res, err := service.DryRunImport(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			res, err := service.ApplyImport(cmd.Context(), req)
			if err != nil {
				return err
			}
			if opts.ReportPath != "" {
				report, err := service.FetchReport(res.Token)
				if err != nil {
					return err
				}
				if err := os.WriteFile(opts.ReportPath, report, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", string(importer.ModeCreateOnly), "create_only or upsert")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate and preview without writing")
	cmd.Flags().BoolVar(&opts.AutoCreateFields, "auto-create-fields", false, "create text fields for unknown custom.* columns")
	cmd.Flags().StringVar(&opts.ReportPath, "report", "", "write the per-row report CSV to this path")

	return cmd
}
