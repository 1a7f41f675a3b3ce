// Package cli wires courtwatch's commands.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string

	flags map[string]*pflag.Flag
}

// NewRootCommand creates the root command for the courtwatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "courtwatch",
		Short: "courtwatch - tennis workout monitor",
		Long: `Watches a directory of exported health data, picks out new tennis sessions,
asks an analysis service for a short coaching report and delivers it exactly once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default $HOME/.courtwatch/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "console", "log format (console|json)")
	opts.flags = map[string]*pflag.Flag{
		"log.level":  cmd.PersistentFlags().Lookup("log-level"),
		"log.format": cmd.PersistentFlags().Lookup("log-format"),
	}

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))

	return cmd
}
