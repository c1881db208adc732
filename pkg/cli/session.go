package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/harrisonrobin/tickmirror/pkg/auth"
	"github.com/harrisonrobin/tickmirror/pkg/config"
	"github.com/harrisonrobin/tickmirror/pkg/ticktick"
	"golang.org/x/oauth2"
)

// connect logs in with the configured credentials and performs the first sync.
func connect(ctx context.Context) (*ticktick.Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are not configured: run 'tickmirror config set username <name>' and 'tickmirror config set password <secret>'")
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	tokens, err := tokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ticktick.New(ctx, ticktick.Options{
		Username:    cfg.Username,
		Password:    cfg.Password,
		BaseURL:     cfg.BaseURL,
		OpenAPIURL:  cfg.OpenAPIURL,
		TokenSource: tokens,
		Policy:      &policy,
		Logger:      logger("ticktick"),
	})
}

// tokenSource returns the open API token source, or nil when no token exists yet. Without
// one the session still works but single-task writes are refused.
func tokenSource(ctx context.Context, c *config.Config) (oauth2.TokenSource, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	ts, err := auth.TokenSource(ctx, auth.TickTickConfig(c.ClientID, c.ClientSecret, c.RedirectURL), dir, c.AccessToken)
	if errors.Is(err, auth.ErrNoToken) {
		log.Printf("Warning: %v", err)
		return nil, nil
	}
	return ts, err
}
