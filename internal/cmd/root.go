package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/semtab/semtab-cli/internal/api"
	"github.com/semtab/semtab-cli/internal/output"
)

var (
	// Version is set at build time
	version = "dev"
	// Commit is set at build time
	commit = "none"
	// Date is set at build time
	date = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Global flags
var (
	baseURL    string
	username   string
	password   string
	outputFmt  string
	outputType output.Format
	debug      bool
	configFile string
	queryExpr  string
	queryFile  string
	errorFmt   string
	quietFlag  bool
	yesFlag    bool
)

// client is the shared API client
var client api.SemTabAPI

var rootCmd = &cobra.Command{
	Use:   "semtab",
	Short: "CLI for the SemTab semantic table enrichment service",
	Long: `semtab is a command-line interface for the SemTab semantic table
enrichment service.

It provides commands for managing datasets and tables, reconciling table
columns against knowledge bases, extending tables with external properties,
and cleaning tabular data locally.

Environment Variables:
  SEMTAB_BASE_URL  Base URL of the SemTab server
  SEMTAB_USERNAME  Username for authentication
  SEMTAB_PASSWORD  Password for authentication`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true

		cfg, err := loadConfigFromFlag()
		if err != nil {
			return formatConfigLoadError(err)
		}

		// Output format selection: --output > config > default
		formatStr := outputFmt
		if !flagChanged(cmd, "output") && !flagChanged(cmd, "format") && cfg != nil && strings.TrimSpace(cfg.OutputFormat) != "" {
			formatStr = strings.TrimSpace(cfg.OutputFormat)
		}
		if !flagChanged(cmd, "output") && !flagChanged(cmd, "format") && !isTerminal(cmd.OutOrStdout()) {
			formatStr = "json"
		}
		format, err := output.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		outputType = format
		outputFmt = string(format)

		// jq query
		if queryExpr != "" && queryFile != "" {
			return fmt.Errorf("use only one of --query or --query-file")
		}
		if queryFile != "" {
			loaded, err := readInputSource(queryFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			queryExpr = loaded
		}

		// Default quiet mode for non-interactive structured output
		if !flagChanged(cmd, "quiet") && !isTerminal(cmd.OutOrStdout()) && output.IsStructured(outputType) {
			quietFlag = true
		}

		ctx := cmd.Context()
		ctx = withIO(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		ctx = output.WithFormat(ctx, outputType)
		ctx = output.WithQuery(ctx, queryExpr)
		ctx = output.WithYes(ctx, yesFlag)
		ctx = output.WithQuiet(ctx, quietFlag)
		ctx = WithErrorFormat(ctx, errorFmt)
		cmd.SetContext(ctx)

		if err := validateErrorFormat(errorFmt); err != nil {
			return err
		}
		if effectiveErrorFormat(ctx) != "text" {
			cmd.SilenceUsage = true
		}

		if !commandNeedsClient(cmd) {
			return nil
		}

		// Resolve credentials with consistent precedence.
		creds, err := resolveCredentials(cmd, cfg)
		if err != nil {
			return err
		}

		if creds.BaseURL == "" {
			return fmt.Errorf("base URL required. Set SEMTAB_BASE_URL or use --base-url flag.")
		}
		if creds.Username == "" || creds.Password == "" {
			return fmt.Errorf("credentials required. Set SEMTAB_USERNAME and SEMTAB_PASSWORD or use flags.\nRun 'semtab auth login' to store credentials.")
		}

		tokens := api.NewTokenSource(creds.BaseURL, creds.Username, creds.Password)
		client, err = newClientFunc(creds.BaseURL, tokens, clientOptions(ctx)...)
		if err != nil {
			return fmt.Errorf("failed to create API client: %w", err)
		}
		return nil
	},
}

// commandNeedsClient reports whether the command talks to the server.
// Auth, modify, and shell plumbing commands run without a client.
func commandNeedsClient(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "auth", "modify", "completion", "help":
			return false
		}
	}
	return true
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		printCommandError(rootCmd.Context(), err)
		return err
	}
	return nil
}

// GetClient returns the initialized API client
func GetClient() api.SemTabAPI {
	return client
}

// GetOutputFormat returns the configured output format
func GetOutputFormat() output.Format {
	if outputType != "" {
		return outputType
	}
	parsed, err := output.ParseFormat(outputFmt)
	if err != nil {
		return output.FormatText
	}
	return parsed
}

// GetOutputFormatString returns the output format as a string.
func GetOutputFormatString() string {
	if outputType != "" {
		return string(outputType)
	}
	return outputFmt
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("semtab version %s (commit: %s, built: %s)\n", version, commit, date))

	// Global flags
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the SemTab server (env: SEMTAB_BASE_URL)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "Username (env: SEMTAB_USERNAME)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password (env: SEMTAB_PASSWORD)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "Output format (text|json|ndjson|table|yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "format", "text", "Alias for --output")
	rootCmd.PersistentFlags().StringVar(&queryExpr, "query", "", "jq expression to filter JSON output")
	rootCmd.PersistentFlags().StringVar(&queryFile, "query-file", "", "Read jq expression from file (use - for stdin)")
	rootCmd.PersistentFlags().StringVar(&errorFmt, "error-format", "auto", "Error output format (auto|text|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Skip confirmation prompts (for automation)")
	rootCmd.PersistentFlags().BoolVar(&yesFlag, "no-input", false, "Alias for --yes (non-interactive)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ~/.config/semtab/config.yaml)")
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// clientOptions builds API client options from global flags. The context
// carries the stderr writer for debug logging.
func clientOptions(ctx context.Context) []api.ClientOption {
	var opts []api.ClientOption
	if debug {
		opts = append(opts, api.WithLogger(debugLogger(stderrFromContext(ctx))))
	}
	return opts
}
