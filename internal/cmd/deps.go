package cmd

import (
	"os"

	"github.com/semtab/semtab-cli/internal/api"
	"github.com/semtab/semtab-cli/internal/config"
	"github.com/semtab/semtab-cli/internal/secrets"
)

var (
	openSecretsStore = func(cfg *config.Config) (*secrets.Store, error) {
		return secrets.Open(secrets.ResolveBackend(cfg))
	}
	newClientFunc = func(baseURL string, tokens api.TokenProvider, opts ...api.ClientOption) (api.SemTabAPI, error) {
		return api.NewClient(baseURL, tokens, opts...)
	}
	envGet = os.Getenv
)
