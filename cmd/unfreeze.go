package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	unfreezeOrg    string
	unfreezeEntity string
)

var unfreezeCmd = &cobra.Command{
	Use:   "unfreeze",
	Short: "Discard an entity's frozen question set",
	Long:  "Deletes the frozen questions, competitors, and role families for an entity so the next scan regenerates them. Trend comparisons across the unfreeze boundary are no longer apples-to-apples.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if unfreezeEntity == "" {
			return eris.New("--entity is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.Unfreeze(ctx, unfreezeOrg, unfreezeEntity); err != nil {
			return eris.Wrap(err, "unfreeze")
		}

		fmt.Fprintf(os.Stdout, "Unfroze research set for %s/%s\n", unfreezeOrg, unfreezeEntity)
		return nil
	},
}

func init() {
	unfreezeCmd.Flags().StringVar(&unfreezeOrg, "org", "default", "organization that owns the entity")
	unfreezeCmd.Flags().StringVar(&unfreezeEntity, "entity", "", "entity identifier")
	rootCmd.AddCommand(unfreezeCmd)
}
