package sources

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"cadence/internal/config"
	"cadence/internal/services"
)

// GoogleOptions returns client options authenticating Google API calls. An
// explicit access token wins, then a credentials file, then application
// default credentials.
func GoogleOptions(ctx context.Context, cfg config.Google, scopes ...string) ([]option.ClientOption, error) {
	if cfg.AccessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	}
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "google", "read credentials", cfg.CredentialsFile, err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "google", "parse credentials", cfg.CredentialsFile, err)
		}
		return []option.ClientOption{option.WithCredentials(creds)}, nil
	}
	creds, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "google", "default credentials",
			fmt.Sprintf("set google.access_token or google.credentials_file (%v)", err), nil)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}
