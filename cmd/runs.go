package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/brandlens/scan-cli/internal/model"
	"github.com/brandlens/scan-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scan run history",
	Long:  "Commands for listing, viewing, and resuming scan runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scan runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		org, _ := cmd.Flags().GetString("org")
		entity, _ := cmd.Flags().GetString("entity")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.ScanFilter{
			Status:   model.ScanStatus(status),
			OrgID:    org,
			EntityID: entity,
			Limit:    limit,
		}

		runs, err := st.ListScans(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatScanList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show full details of a run",
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

		run, err := st.GetScan(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs resume --

var runsResumeCmd = &cobra.Command{
	Use:   "resume <scan-id>",
	Short: "Resume an interrupted run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initScanEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.Resume(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs resume")
		}

		run, err := env.Store.GetScan(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Run %s: %s (%d%%)\n", run.ID, run.Status, run.Progress)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by status (queued, querying, complete, failed, ...)")
	runsListCmd.Flags().String("org", "", "filter by organization")
	runsListCmd.Flags().String("entity", "", "filter by entity")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsResumeCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatScanList writes a tabular list of runs to w.
func formatScanList(out io.Writer, runs []model.ScanRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tENTITY\tSTATUS\tPROGRESS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t--------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		entity := r.Entity.Name
		if entity == "" {
			entity = r.Entity.Domain
		}
		if len(entity) > 30 {
			entity = entity[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
			truncateID(r.ID),
			entity,
			r.Status,
			r.Progress,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
