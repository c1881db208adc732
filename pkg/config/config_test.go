package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/harrisonrobin/tickmirror/pkg/model"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Unexpected defaults (-want +got):\n%s", diff)
	}
	d, _ := cfg.Interval()
	if d != time.Minute {
		t.Errorf("Expected a one minute poll interval, got %v", d)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"username": "me@example.com", "calendar": "Work", "retries": 5, "backoff": "250ms"}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TICKMIRROR_PASSWORD", "from-env")
	t.Setenv("TICKMIRROR_CALENDAR", "Override")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Username != "me@example.com" || cfg.Password != "from-env" || cfg.Calendar != "Override" {
		t.Errorf("Unexpected config %+v", cfg)
	}
	p, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	if p.Retries != 5 || p.Backoff != 250*time.Millisecond || len(p.Statuses) != 4 {
		t.Errorf("Unexpected policy %+v", p)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"poll_interval": "soon"}`), 0600)
	if _, err := LoadFrom(path); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestSaveAndSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Username = "me@example.com"
	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	updated, err := Set(path, "retry_statuses", "500,503")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if diff := cmp.Diff([]int{500, 503}, updated.RetryStatuses); diff != "" {
		t.Errorf("Unexpected statuses (-want +got):\n%s", diff)
	}
	reloaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if reloaded.Username != "me@example.com" || len(reloaded.RetryStatuses) != 2 {
		t.Errorf("Expected saved values to survive, got %+v", reloaded)
	}

	if _, err := Set(path, "colour", "x"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for unknown key, got %v", err)
	}
	if _, err := Set(path, "poll_interval", "-1m"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for negative interval, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != 14 || keys[0] != "access_token" {
		t.Errorf("Unexpected keys %v", keys)
	}
}
