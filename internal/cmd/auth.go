package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/semtab/semtab-cli/internal/api"
	"github.com/semtab/semtab-cli/internal/config"
	"github.com/semtab/semtab-cli/internal/secrets"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication credentials",
	Long: `Manage authentication credentials for the SemTab server.

Credentials are stored securely in your system keychain (macOS Keychain,
Windows Credential Manager, or encrypted file on Linux).

Examples:
  semtab auth login --username USER --base-url https://semtab.example.org
  semtab auth login  # Interactive prompt for credentials
  semtab auth status
  semtab auth logout`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store server credentials",
	Long: `Store credentials for the SemTab server.

The credentials are verified by signing in to the server, then stored in
the system keychain. The base URL and username are also saved to the
config file so later commands need no flags.

Examples:
  semtab auth login                                   # Interactive prompts
  semtab auth login --username USER                   # Prompt for password only
  semtab auth login --username USER --password PASS   # Non-interactive
  semtab auth login --no-verify                       # Store without signing in`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	Long: `Clear stored credentials from the system keychain.

Examples:
  semtab auth logout`,
	RunE: runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current authentication status",
	Long: `Display the current authentication status.

Shows whether credentials are stored and which server is configured.
Can optionally verify the credentials by signing in.

Examples:
  semtab auth status
  semtab auth status --verify  # Also sign in to check the credentials`,
	RunE: runStatus,
}

var (
	noVerifyLogin bool
	verifyAuth    bool
)

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(authCmd)

	loginCmd.Flags().BoolVar(&noVerifyLogin, "no-verify", false, "Store credentials without signing in first")
	statusCmd.Flags().BoolVar(&verifyAuth, "verify", false, "Verify credentials by signing in")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlag()
	if err != nil {
		return formatConfigLoadError(err)
	}

	structured := structuredOutputRequested()
	ctx := cmd.Context()

	server := strings.TrimSpace(baseURL)
	if server == "" {
		server = strings.TrimSpace(envGet("SEMTAB_BASE_URL"))
	}
	if server == "" && cfg != nil {
		server = strings.TrimSpace(cfg.BaseURL)
	}
	if server == "" {
		server, err = promptString(ctx, "Server base URL: ")
		if err != nil {
			return fmt.Errorf("failed to read base URL: %w", err)
		}
	}
	if server == "" {
		return fmt.Errorf("base URL is required")
	}

	user := strings.TrimSpace(username)
	if user == "" {
		user = strings.TrimSpace(envGet("SEMTAB_USERNAME"))
	}
	if user == "" {
		user, err = promptString(ctx, "Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if user == "" {
		return fmt.Errorf("username is required")
	}

	pass := strings.TrimSpace(password)
	if pass == "" {
		pass = strings.TrimSpace(envGet("SEMTAB_PASSWORD"))
	}
	if pass == "" {
		pass, err = promptSecret(ctx, "Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}
	if pass == "" {
		return fmt.Errorf("password is required")
	}

	if !noVerifyLogin {
		if !structured {
			fmt.Fprintln(stderrFromContext(ctx), "Verifying credentials...")
		}
		tokens := api.NewTokenSource(server, user, pass)
		if err := tokens.Refresh(ctx); err != nil {
			if _, ok := err.(api.AuthenticationError); ok {
				return fmt.Errorf("authentication failed: invalid username or password")
			}
			return fmt.Errorf("could not verify credentials: %w", err)
		}
		if !structured {
			fmt.Fprintln(stderrFromContext(ctx), "Credentials verified successfully.")
		}
	}

	store, err := openSecretsStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	if err := store.SetCredentials(secrets.Credentials{Username: user, Password: pass}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	// Persist server and username so later commands need no flags.
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.BaseURL = server
	cfg.Username = user
	if err := saveConfigFromFlag(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if structured {
		return printStructured(cmd, map[string]interface{}{
			"status":   "authenticated",
			"base_url": server,
			"username": user,
		})
	}

	out := stdoutFromContext(ctx)
	fmt.Fprintf(out, "\nAuthenticated successfully!\n")
	fmt.Fprintf(out, "Server: %s\n", server)
	fmt.Fprintf(out, "Username: %s\n", user)
	fmt.Fprintln(out, "\nYou can now use semtab commands without specifying credentials.")

	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlag()
	if err != nil {
		return formatConfigLoadError(err)
	}

	store, err := openSecretsStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	if err := store.DeleteCredentials(); err != nil {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	if structuredOutputRequested() {
		return printStructured(cmd, map[string]interface{}{
			"status": "logged_out",
		})
	}

	out := stdoutFromContext(cmd.Context())
	fmt.Fprintln(out, "Logged out successfully.")
	fmt.Fprintln(out, "Credentials have been removed from the system keychain.")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlag()
	if err != nil {
		return formatConfigLoadError(err)
	}

	structured := structuredOutputRequested()
	ctx := cmd.Context()
	out := stdoutFromContext(ctx)

	store, err := openSecretsStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	creds, err := store.GetCredentials()
	if err != nil {
		if !secrets.IsNotFound(err) {
			return fmt.Errorf("failed to read credentials: %w", err)
		}
		if structured {
			return printStructured(cmd, map[string]interface{}{
				"authenticated": false,
			})
		}
		fmt.Fprintln(out, "Status: Not authenticated")
		fmt.Fprintln(out, "\nRun 'semtab auth login' to authenticate.")
		return nil
	}

	server := strings.TrimSpace(baseURL)
	if server == "" {
		server = strings.TrimSpace(envGet("SEMTAB_BASE_URL"))
	}
	if server == "" && cfg != nil {
		server = strings.TrimSpace(cfg.BaseURL)
	}

	var verified *bool
	var verifyError string
	var tokenPreview string

	if verifyAuth {
		if server == "" {
			verifyError = "base URL not configured"
			val := false
			verified = &val
		} else {
			if !structured {
				fmt.Fprintln(stderrFromContext(ctx), "Verifying credentials...")
			}
			tokens := api.NewTokenSource(server, creds.Username, creds.Password)
			tok, err := tokens.Token(ctx)
			if err != nil {
				if _, ok := err.(api.AuthenticationError); ok {
					verifyError = "invalid username or password"
				} else {
					verifyError = err.Error()
				}
				val := false
				verified = &val
			} else {
				val := true
				verified = &val
				tokenPreview = maskToken(tok)
			}
		}
	}

	if structured {
		result := map[string]interface{}{
			"authenticated":       true,
			"username":            creds.Username,
			"base_url":            server,
			"base_url_configured": server != "",
		}
		if verifyAuth {
			result["verified"] = verified
			if verifyError != "" {
				result["verify_error"] = verifyError
			}
			if tokenPreview != "" {
				result["token_preview"] = tokenPreview
			}
		}
		return printStructured(cmd, result)
	}

	fmt.Fprintln(out, "Status: Authenticated")
	fmt.Fprintf(out, "Username: %s\n", creds.Username)
	if server != "" {
		fmt.Fprintf(out, "Server: %s\n", server)
	} else {
		fmt.Fprintln(out, "Server: Not configured")
	}
	if verifyAuth {
		if verified != nil && *verified {
			fmt.Fprintln(out, "Verification: OK - Credentials are valid")
			if tokenPreview != "" {
				fmt.Fprintf(out, "Token: %s\n", tokenPreview)
			}
		} else {
			fmt.Fprintf(out, "Verification: FAILED - %s\n", verifyError)
		}
	}

	return nil
}

// saveConfigFromFlag writes cfg to --config if provided, otherwise to the
// default path.
func saveConfigFromFlag(cfg *config.Config) error {
	path := strings.TrimSpace(configFile)
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	return cfg.Save(path)
}

// promptString prompts for a string input
func promptString(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(stderrFromContext(ctx), prompt)
	reader := bufio.NewReader(stdinFromContext(ctx))
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// promptSecret prompts for a secret input (no echo)
func promptSecret(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(stderrFromContext(ctx), prompt)

	in := stdinFromContext(ctx)
	if file, ok := in.(*os.File); ok {
		if term.IsTerminal(int(file.Fd())) {
			password, err := term.ReadPassword(int(file.Fd()))
			fmt.Fprintln(stderrFromContext(ctx))
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(password)), nil
		}
	}

	// Fall back to regular input for non-terminal (e.g., piped input)
	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// maskToken masks a token for display, showing only first and last 4 characters
func maskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
