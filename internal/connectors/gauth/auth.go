package gauth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"suppliers/internal/config"
)

// ClientOptions builds credentials for the Google API clients. A configured
// refresh token wins; otherwise application default credentials are used.
func ClientOptions(ctx context.Context, cfg config.Config, scopes ...string) ([]option.ClientOption, error) {
	if cfg.GoogleRefreshToken == "" {
		ts, err := google.DefaultTokenSource(ctx, scopes...)
		if err != nil {
			return nil, err
		}
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	}

	if err := cfg.Require("GOOGLE_CLIENT_ID", cfg.GoogleClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
	return []option.ClientOption{option.WithTokenSource(tokenSource)}, nil
}
