package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// Version is the current version of envrig, set at build time.
var Version = "dev"

// NewRootCmd creates the root command and wires up its subcommands.
func NewRootCmd(ll *slog.LevelVar, stderr io.Writer, environ func() []string) *cobra.Command {
	var debug bool

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: ll}))

	rootCmd := &cobra.Command{
		Use:           "envrig",
		Short:         "Inspect how environment variables map to configuration keys",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debug {
				ll.Set(slog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(NewCollectCmd(logger, environ))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
