package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Run executes the envrig command line. environ supplies the variables the
// commands read; nil means os.Environ.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, environ func() []string) error {
	logLevel := &slog.LevelVar{}
	logLevel.Set(slog.LevelInfo)

	if environ == nil {
		environ = os.Environ
	}

	rootCmd := NewRootCmd(logLevel, stderr, environ)
	rootCmd.SetArgs(args[1:]) // Skip the program name
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}

	return nil
}
