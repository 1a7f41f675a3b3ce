package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentworkforce/courtwatch/internal/config"
	"github.com/agentworkforce/courtwatch/internal/workout"
)

// NewAnalyzeCommand creates the ad-hoc analysis command. It prints nothing when the file
// cannot be read or the index is out of range.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file> [index]",
		Short: "Print the coaching report for one tennis workout in an export file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := 0
			if len(args) == 2 {
				parsed, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid index %q: %w", args[1], err)
				}
				index = parsed
			}

			a, err := loadApp(rootOpts, nil, nil, (*config.Config).ValidateAnalysis)
			if err != nil {
				return err
			}
			defer a.sync()

			chain, err := a.newChain()
			if err != nil {
				return err
			}
			doc, err := chain.Load(cmd.Context(), args[0], nil)
			if err != nil {
				a.logger.Debug("export not readable", zap.String("path", args[0]), zap.Error(err))
				return nil
			}
			filter := workout.AdHocFilter()
			filter.Marker = a.cfg.Watch.Marker
			tennis := workout.Extract(doc, filter)
			if index < 0 || index >= len(tennis) {
				a.logger.Debug("workout index out of range", zap.Int("index", index), zap.Int("count", len(tennis)))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.newAnalyzer().Analyze(cmd.Context(), tennis[index]))
			return nil
		},
	}
	return cmd
}
