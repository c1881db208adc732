// Package auth obtains and stores the OAuth2 tokens for the TickTick open API and for
// Google Calendar.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/oauth2"
)

const (
	// TokenFile holds the TickTick open API token inside the config directory.
	TokenFile = "ticktick_token.json"

	// LocalhostAuthPort is where the local callback server listens during the web flow.
	LocalhostAuthPort = "8080"

	authURL  = "https://ticktick.com/oauth/authorize"
	tokenURL = "https://ticktick.com/oauth/token"
)

// ErrNoToken is returned when no token is configured or stored.
var ErrNoToken = errors.New("no access token: run the auth command first")

// Scopes requested from TickTick.
var Scopes = []string{"tasks:read", "tasks:write"}

// TickTickConfig returns the OAuth2 configuration of the TickTick open API. An empty
// redirectURL points at the local callback server.
func TickTickConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if redirectURL == "" {
		redirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// ParseAccessToken accepts either a token JSON document as returned by the token endpoint or
// a bare access token string.
func ParseAccessToken(raw string) (*oauth2.Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoToken
	}
	if !strings.HasPrefix(raw, "{") {
		return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
	}

	var doc struct {
		AccessToken  string  `json:"access_token"`
		TokenType    string  `json:"token_type"`
		RefreshToken string  `json:"refresh_token"`
		ExpiresIn    float64 `json:"expires_in"`
		ExpiresAt    float64 `json:"expires_at"`
		Expiry       string  `json:"expiry"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse access token JSON: %w", err)
	}
	if doc.AccessToken == "" {
		return nil, fmt.Errorf("access token JSON has no access_token: %w", ErrNoToken)
	}
	tok := &oauth2.Token{AccessToken: doc.AccessToken, TokenType: doc.TokenType, RefreshToken: doc.RefreshToken}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	switch {
	case doc.Expiry != "":
		if t, err := time.Parse(time.RFC3339, doc.Expiry); err == nil {
			tok.Expiry = t
		}
	case doc.ExpiresAt > 0:
		tok.Expiry = time.Unix(int64(doc.ExpiresAt), 0)
	case doc.ExpiresIn > 0:
		tok.Expiry = time.Now().Add(time.Duration(doc.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// TokenSource returns the TickTick bearer token source. A token given in the configuration
// wins; otherwise the token stored in dir is used and refreshed tokens are written back.
func TokenSource(ctx context.Context, cfg *oauth2.Config, dir, configured string) (oauth2.TokenSource, error) {
	if strings.TrimSpace(configured) != "" {
		tok, err := ParseAccessToken(configured)
		if err != nil {
			return nil, err
		}
		return oauth2.StaticTokenSource(tok), nil
	}

	path := filepath.Join(dir, TokenFile)
	tok, err := LoadToken(path)
	if err != nil {
		return nil, err
	}
	return &savingSource{base: cfg.TokenSource(ctx, tok), path: path, last: tok}, nil
}

// savingSource writes the token back to disk whenever the underlying source refreshes it.
type savingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		log.Println("Token was refreshed. Saving new token to file.")
		if err := SaveToken(s.path, tok); err != nil {
			log.Printf("Warning: Could not save refreshed token: %v", err)
		}
		s.last = tok
	}
	return tok, nil
}

// Login runs the browser flow and stores the resulting token in dir.
func Login(ctx context.Context, cfg *oauth2.Config, dir string) (*oauth2.Token, error) {
	tok, err := WebFlow(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := SaveToken(filepath.Join(dir, TokenFile), tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// WebFlow runs the authorization code flow through a local callback server.
func WebFlow(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	port := LocalhostAuthPort
	if u, err := url.Parse(cfg.RedirectURL); err == nil && u.Port() != "" {
		port = u.Port()
	}
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", port, err)
	}
	defer listener.Close()

	state := fmt.Sprintf("tickmirror-%d", time.Now().UnixNano())
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("state") != state {
				http.Error(w, "State mismatch", http.StatusBadRequest)
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				errCh <- fmt.Errorf("authorization code not found in redirect URL")
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			codeCh <- code
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	defer server.Shutdown(context.Background())

	fmt.Printf("Please open the following URL in your browser to authorize tickmirror:\n%s\n",
		cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))
	log.Println("Waiting for authorization code...")

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := cfg.Exchange(exCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timed out. Please try again")
	}
}

// LoadToken reads a token file.
func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoToken)
	}
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes a token file readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("unable to save token to %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}
