package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentworkforce/courtwatch/internal/config"
)

// NewStateCommand creates a command listing delivered workout ids, oldest first.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the ids of workouts already delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(rootOpts, monitorFlags(cmd.Flags()), nil, (*config.Config).ValidateState)
			if err != nil {
				return err
			}
			defer a.sync()

			l, release, err := a.openLedger(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer release()

			ids := l.Snapshot()
			out := cmd.OutOrStdout()
			if asJSON {
				if ids == nil {
					ids = []string{}
				}
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(map[string]any{
					"processed_workout_ids": ids,
					"count":                 len(ids),
					"capacity":              l.Capacity(),
					"load_outcome":          l.Outcome().String(),
				})
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
	cmd.Flags().String("state", "", "state DSN: file path, file://, sqlite://, postgres:// or memory://")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
