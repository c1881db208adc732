package auth

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// ClientSecretsFile is the Google API credentials.json inside the config directory.
	ClientSecretsFile = "credentials.json"

	// GoogleTokenFile holds the Google Calendar token inside the config directory.
	GoogleTokenFile = "google_token.json"
)

// GoogleConfig reads the Google client secrets from dir. Localhost redirects are pinned to
// the callback port.
func GoogleConfig(dir string, scopes ...string) (*oauth2.Config, error) {
	path := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	u, err := url.Parse(cfg.RedirectURL)
	switch {
	case cfg.RedirectURL == "urn:ietf:wg:oauth:2.0:oob":
		cfg.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	case err != nil:
		log.Printf("Warning: Could not parse RedirectURL '%s': %v. Using it as is.", cfg.RedirectURL, err)
	case u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1":
		if u.Port() != LocalhostAuthPort {
			u.Host = u.Hostname() + ":" + LocalhostAuthPort
			cfg.RedirectURL = u.String()
		}
	default:
		log.Printf("Warning: RedirectURL %s is not a localhost callback.", cfg.RedirectURL)
	}
	return cfg, nil
}

// CalendarService returns an authenticated Google Calendar service, running the browser flow
// when no token is stored yet.
func CalendarService(ctx context.Context, dir string) (*calendar.Service, error) {
	cfg, err := GoogleConfig(dir, calendar.CalendarEventsScope, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, GoogleTokenFile)
	tok, err := LoadToken(path)
	if err != nil {
		log.Printf("No Google token found at %s. Initiating web authorization flow...", path)
		tok, err = WebFlow(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := SaveToken(path, tok); err != nil {
			return nil, err
		}
	}

	src := &savingSource{base: cfg.TokenSource(ctx, tok), path: path, last: tok}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, src)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google Calendar service: %w", err)
	}
	return srv, nil
}
