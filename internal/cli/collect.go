package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Azhovan/envrig"
	"github.com/Azhovan/envrig/sourceazure"
	"github.com/Azhovan/envrig/sourceenv"
)

// settingsPrefix names the variables that supply collect's flag defaults.
const settingsPrefix = "ENVRIG"

// settings holds collect's flag defaults, read from ENVRIG_* variables.
type settings struct {
	Prefix      string   `conf:"name:prefix"`
	Separator   string   `conf:"name:separator,default:__"`
	IgnoreEmpty bool     `conf:"name:ignore_empty"`
	Format      string   `conf:"name:format,default:text,oneof:text,json"`
	Dotenv      []string `conf:"name:dotenv"`
}

// NewCollectCmd prints the keys an Environment source produces.
func NewCollectCmd(logger *slog.Logger, environ func() []string) *cobra.Command {
	var flags settings

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Print environment variables as normalized configuration keys",
		Long: `Collect reads environment variables with an optional prefix, splits their
names on the separator, and rewrites numeric segments into index notation:

  APP_SERVERS__0__HOST=a  →  servers[0].host=a

Flag defaults can be set with ENVRIG_PREFIX, ENVRIG_SEPARATOR,
ENVRIG_IGNORE_EMPTY, ENVRIG_FORMAT and ENVRIG_DOTENV__<n>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			defaults, err := envrig.NewLoader[settings]().
				WithSource(sourceazure.FromEnvironment(sourceenv.Options{Prefix: settingsPrefix, Environ: environ})).
				WithLogger(logger).
				Load(ctx)
			if err != nil {
				return fmt.Errorf("read %s_* settings: %w", settingsPrefix, err)
			}
			opts := mergeFlags(cmd, *defaults, flags)
			logger.Debug("collecting", "prefix", opts.Prefix, "separator", opts.Separator, "format", opts.Format)

			src := sourceazure.FromEnvironment(sourceenv.Options{Environ: environ}).
				Prefix(opts.Prefix).
				Separator(opts.Separator).
				IgnoreEmpty(opts.IgnoreEmpty).
				Dotenv(opts.Dotenv...)

			data, err := src.Load(ctx)
			if err != nil {
				return fmt.Errorf("collect %s: %w", src.Name(), err)
			}
			logger.Debug("collected", "source", src.Name(), "keys", len(data))

			switch opts.Format {
			case "text":
				return writeText(cmd.OutOrStdout(), data)
			case "json":
				return writeJSON(cmd.OutOrStdout(), data)
			default:
				return fmt.Errorf("unsupported format %q (supported: text, json)", opts.Format)
			}
		},
	}

	cmd.Flags().StringVarP(&flags.Prefix, "prefix", "p", "", "only read variables named PREFIX_*")
	cmd.Flags().StringVarP(&flags.Separator, "separator", "s", "", `level separator in variable names (default "__")`)
	cmd.Flags().BoolVar(&flags.IgnoreEmpty, "ignore-empty", false, "skip variables with empty values")
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "", `output format: text or json (default "text")`)
	cmd.Flags().StringSliceVar(&flags.Dotenv, "dotenv", nil, ".env files to read before the process environment")

	return cmd
}

// mergeFlags overrides the environment defaults with flags set on the command line.
func mergeFlags(cmd *cobra.Command, defaults, flags settings) settings {
	out := defaults
	if cmd.Flags().Changed("prefix") {
		out.Prefix = flags.Prefix
	}
	if cmd.Flags().Changed("separator") {
		out.Separator = flags.Separator
	}
	if cmd.Flags().Changed("ignore-empty") {
		out.IgnoreEmpty = flags.IgnoreEmpty
	}
	if cmd.Flags().Changed("format") {
		out.Format = flags.Format
	}
	if cmd.Flags().Changed("dotenv") {
		out.Dotenv = flags.Dotenv
	}
	return out
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeText(w io.Writer, data map[string]any) error {
	for _, k := range sortedKeys(data) {
		if _, err := fmt.Fprintf(w, "%s=%v\n", k, data[k]); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, data map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
