package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/brandlens/scan-cli/internal/model"
)

var (
	scanName     string
	scanOrg      string
	scanEntityID string
	scanLocation string
)

var scanCmd = &cobra.Command{
	Use:   "scan <domain>",
	Short: "Run a full visibility scan for an employer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initScanEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		domain := strings.TrimSpace(args[0])
		entity := model.Entity{
			OrgID:    scanOrg,
			EntityID: scanEntityID,
			Name:     scanName,
			Domain:   domain,
			Location: scanLocation,
		}
		if entity.EntityID == "" {
			entity.EntityID = domain
		}
		if entity.Name == "" {
			entity.Name = entityNameFromDomain(domain)
		}

		run, err := env.Orchestrator.Start(ctx, entity)
		if err != nil {
			return eris.Wrap(err, "scan")
		}

		report, err := env.Store.GetReport(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "load report")
		}

		printReportSummary(os.Stdout, entity, report)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanName, "name", "", "employer name (default derived from domain)")
	scanCmd.Flags().StringVar(&scanOrg, "org", "default", "organization that owns the entity")
	scanCmd.Flags().StringVar(&scanEntityID, "entity", "", "entity identifier (default: domain)")
	scanCmd.Flags().StringVar(&scanLocation, "location", "", "market context, e.g. \"Austin, TX\"")
	rootCmd.AddCommand(scanCmd)
}

// entityNameFromDomain derives a displayable name from a bare domain:
// "acme-corp.com" becomes "Acme Corp".
func entityNameFromDomain(domain string) string {
	host := domain
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, "./"); i > 0 {
		host = host[:i]
	}

	words := strings.FieldsFunc(host, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func printReportSummary(out *os.File, entity model.Entity, report *model.Report) {
	fmt.Fprintf(out, "\n%s (%s)\n", entity.Name, entity.Domain)
	fmt.Fprintf(out, "  Desirability:    %3d / 100\n", report.DesirabilityScore)
	fmt.Fprintf(out, "  Researchability: %3d / 100\n", report.ResearchabilityScore)
	fmt.Fprintf(out, "  Differentiation: %3d / 100\n", report.DifferentiationScore)
	if len(report.TopicsMissing) > 0 {
		fmt.Fprintf(out, "  Missing topics:  %s\n", strings.Join(report.TopicsMissing, ", "))
	}
	if len(report.TopCompetitors) > 0 {
		fmt.Fprintf(out, "  Top competitors: %s\n", strings.Join(report.TopCompetitors, ", "))
	}
	fmt.Fprintf(out, "  Share token:     %s (expires %s)\n",
		report.ShareToken, report.ExpiresAt.Format("2006-01-02"))
}
