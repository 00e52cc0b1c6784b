package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/semtab/semtab-cli/internal/config"
)

// credentials is the resolved connection info for the SemTab server.
type credentials struct {
	BaseURL  string
	Username string
	Password string
}

// loadConfigFromFlag loads config from --config if provided, otherwise from default path.
func loadConfigFromFlag() (*config.Config, error) {
	if strings.TrimSpace(configFile) != "" {
		return config.Load(configFile)
	}
	return config.ReadConfig()
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	if cmd.Flags().Changed(name) {
		return true
	}
	return cmd.InheritedFlags().Changed(name)
}

// resolveCredentials resolves base URL, username, and password with
// precedence: flags > env > keyring > config. The password is never read
// from the config file.
func resolveCredentials(cmd *cobra.Command, cfg *config.Config) (credentials, error) {
	creds := credentials{
		BaseURL:  strings.TrimSpace(baseURL),
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}

	// Flags (only if explicitly set)
	if !flagChanged(cmd, "base-url") {
		creds.BaseURL = ""
	}
	if !flagChanged(cmd, "username") {
		creds.Username = ""
	}
	if !flagChanged(cmd, "password") {
		creds.Password = ""
	}

	// Environment
	if creds.BaseURL == "" {
		creds.BaseURL = strings.TrimSpace(envGet("SEMTAB_BASE_URL"))
	}
	if creds.Username == "" {
		creds.Username = strings.TrimSpace(envGet("SEMTAB_USERNAME"))
	}
	if creds.Password == "" {
		creds.Password = strings.TrimSpace(envGet("SEMTAB_PASSWORD"))
	}

	// Keyring (only if still missing)
	if creds.Username == "" || creds.Password == "" {
		store, err := openSecretsStore(cfg)
		if err == nil {
			if stored, err := store.GetCredentials(); err == nil {
				if creds.Username == "" {
					creds.Username = stored.Username
				}
				if creds.Password == "" {
					creds.Password = stored.Password
				}
			}
		}
	}

	// Config fallback
	if cfg != nil {
		if creds.BaseURL == "" {
			creds.BaseURL = strings.TrimSpace(cfg.BaseURL)
		}
		if creds.Username == "" {
			creds.Username = strings.TrimSpace(cfg.Username)
		}
	}

	return creds, nil
}

// debugLogger builds the console logger used with --debug.
func debugLogger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(cw).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

func formatConfigLoadError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load config: %w", err)
}
