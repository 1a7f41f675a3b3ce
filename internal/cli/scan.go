package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentworkforce/courtwatch/internal/config"
	"github.com/agentworkforce/courtwatch/internal/watcher"
)

var ErrScanFailed = errors.New("scan failed")

// NewScanCommand creates a command that runs one export file through the pipeline now.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Process one export file immediately",
		Long: `Reads the given export file and delivers reports for any new tennis sessions,
skipping the file-name date check and the debounce used by watch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			a, err := loadApp(rootOpts, monitorFlags(cmd.Flags()), func(cfg *config.Config) {
				if strings.TrimSpace(cfg.Watch.Dir) == "" {
					cfg.Watch.Dir = filepath.Dir(path)
				}
			}, (*config.Config).Validate)
			if err != nil {
				return err
			}
			defer a.sync()

			l, releaseLedger, err := a.openLedger(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer releaseLedger()
			machine, releaseMachine, err := a.newMachine(l)
			if err != nil {
				return err
			}
			defer releaseMachine()

			out := machine.Process(cmd.Context(), path)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new, %d delivered (%s)\n", path, out.Novel, out.Delivered, out.Category)
			switch out.Category {
			case watcher.CategoryNone, watcher.CategoryBenign:
				return nil
			default:
				return fmt.Errorf("%w: %w", ErrScanFailed, out.Err)
			}
		},
	}
	addMonitorFlags(cmd.Flags())
	return cmd
}
