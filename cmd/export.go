package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/brandlens/scan-cli/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <scan-id>",
	Short: "Export a completed scan as an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		env := &scanEnv{Store: st}
		data, err := loadExportData(ctx, env, args[0])
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = args[0] + ".xlsx"
		}
		if err := export.WriteFile(out, data); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Wrote %s\n", out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default <scan-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}

// loadExportData gathers everything the workbook renders for one scan.
func loadExportData(ctx context.Context, env *scanEnv, scanID string) (export.Data, error) {
	run, err := env.Store.GetScan(ctx, scanID)
	if err != nil {
		return export.Data{}, eris.Wrap(err, "load scan")
	}
	report, err := env.Store.GetReport(ctx, scanID)
	if err != nil {
		return export.Data{}, eris.Wrap(err, "load report")
	}
	prompts, err := env.Store.PromptsForScan(ctx, scanID)
	if err != nil {
		return export.Data{}, eris.Wrap(err, "load prompts")
	}
	responses, err := env.Store.ResponsesForScan(ctx, scanID)
	if err != nil {
		return export.Data{}, eris.Wrap(err, "load responses")
	}
	history, err := env.Store.ScoreHistory(ctx, run.Entity.OrgID, run.Entity.EntityID, 24)
	if err != nil {
		return export.Data{}, eris.Wrap(err, "load score history")
	}

	return export.Data{
		Run:       run,
		Report:    report,
		Prompts:   prompts,
		Responses: responses,
		History:   history,
	}, nil
}
