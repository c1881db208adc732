package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/harrisonrobin/tickmirror/pkg/config"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// fakeAccount answers the login, settings, full-state and batch task calls.
type fakeAccount struct {
	mu    sync.Mutex
	seq   int
	tasks []map[string]any
}

func (f *fakeAccount) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/api/v2/user/signon":
		json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	case "/api/v2/user/preferences/settings":
		json.NewEncoder(w).Encode(map[string]string{"timeZone": "UTC", "id": "u1"})
	case "/api/v2/batch/check/0":
		json.NewEncoder(w).Encode(map[string]any{
			"inboxId":         "inbox1",
			"projectGroups":   []any{},
			"projectProfiles": []any{map[string]any{"id": "p1", "name": "Work", "etag": "ep1"}},
			"syncTaskBean":    map[string]any{"update": f.tasks},
			"tags":            []any{map[string]any{"name": "home", "label": "Home", "etag": "et1"}},
		})
	case "/api/v2/batch/task":
		var req struct {
			Add []map[string]any `json:"add"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		id2etag := map[string]string{}
		for _, task := range req.Add {
			f.seq++
			task["etag"] = fmt.Sprintf("e%d", f.seq)
			f.tasks = append(f.tasks, task)
			id2etag[task["id"].(string)] = task["etag"].(string)
		}
		json.NewEncoder(w).Encode(map[string]any{"id2etag": id2etag, "id2error": map[string]any{}})
	default:
		http.NotFound(w, r)
	}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func setupAccount(t *testing.T) (*fakeAccount, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	account := &fakeAccount{tasks: []map[string]any{
		{"id": "t1", "projectId": "p1", "title": "Write report", "etag": "e0", "dueDate": "2024-03-10T09:00:00.000+0000"},
	}}
	srv := httptest.NewServer(account)
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "config.json")
	c := config.Default()
	c.Username = "me@example.com"
	c.Password = "secret"
	c.BaseURL = srv.URL + "/api/v2/"
	c.OpenAPIURL = srv.URL
	c.Retries = 0
	if err := config.SaveTo(path, c); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	return account, path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(rootCmd) })
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	configPath = ""
	err := rootCmd.Execute()
	resetFlags(rootCmd)
	return out.String(), err
}

func TestSyncCommand(t *testing.T) {
	_, path := setupAccount(t)
	out, err := run(t, "", "--config", path, "sync")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	for _, want := range []string{"Time zone: UTC", "Inbox: inbox1", "projects", "tasks"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestTasksListCommand(t *testing.T) {
	_, path := setupAccount(t)
	out, err := run(t, "", "--config", path, "tasks", "list")
	if err != nil {
		t.Fatalf("tasks list failed: %v", err)
	}
	if !strings.Contains(out, "t1") || !strings.Contains(out, "Write report") || !strings.Contains(out, "Work") {
		t.Errorf("Unexpected listing:\n%s", out)
	}

	out, err = run(t, "", "--config", path, "tasks", "list", "--todo")
	if err != nil {
		t.Fatalf("tasks list --todo failed: %v", err)
	}
	if !strings.Contains(out, "Work (1)") || !strings.Contains(out, "Inbox (0)") || !strings.Contains(out, "2024-03-10") {
		t.Errorf("Unexpected to-do listing:\n%s", out)
	}
}

func TestTasksCreateFromStdin(t *testing.T) {
	account, path := setupAccount(t)
	stdin := `{"title": "Buy milk"}
{"title": "Call mom", "projectId": "p1"}`

	out, err := run(t, stdin, "--config", path, "tasks", "create", "--stdin")
	if err != nil {
		t.Fatalf("tasks create --stdin failed: %v", err)
	}
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "Call mom") {
		t.Errorf("Unexpected output:\n%s", out)
	}

	account.mu.Lock()
	defer account.mu.Unlock()
	if len(account.tasks) != 3 {
		t.Fatalf("Expected 3 tasks on the server, got %d", len(account.tasks))
	}
	if got := account.tasks[1]["projectId"]; got != "inbox1" {
		t.Errorf("Expected a task without project to land in the inbox, got %v", got)
	}
}

func TestTasksCreateNeedsOpenAPIToken(t *testing.T) {
	_, path := setupAccount(t)
	_, err := run(t, "", "--config", path, "tasks", "create", "--title", "x")
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument without an access token, got %v", err)
	}
}

func TestConfigSetAndShow(t *testing.T) {
	_, path := setupAccount(t)
	if _, err := run(t, "", "--config", path, "config", "set", "calendar", "Work"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	loaded, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Calendar != "Work" {
		t.Errorf("Expected calendar Work, got %q", loaded.Calendar)
	}

	out, err := run(t, "", "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if strings.Contains(out, `"secret"`) || !strings.Contains(out, "********") {
		t.Errorf("Expected the password masked, got:\n%s", out)
	}

	if _, err := run(t, "", "--config", path, "config", "set", "nope", "x"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for an unknown key, got %v", err)
	}
}

func TestLogFileRotation(t *testing.T) {
	_, path := setupAccount(t)
	logPath := filepath.Join(t.TempDir(), "tickmirror.log")
	if _, err := run(t, "", "--config", path, "config", "set", "log_file", logPath); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if _, err := run(t, "", "--config", path, "sync"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Expected a log file: %v", err)
	}
	if !strings.Contains(string(b), "Logged in as me@example.com") {
		t.Errorf("Expected the session log in the file, got:\n%s", b)
	}
}

func TestParseWhen(t *testing.T) {
	got, err := parseWhen("2024-03-16 14:30")
	if err != nil {
		t.Fatalf("parseWhen failed: %v", err)
	}
	if diff := cmp.Diff(time.Date(2024, 3, 16, 14, 30, 0, 0, time.UTC), *got); diff != "" {
		t.Errorf("parseWhen mismatch (-want +got):\n%s", diff)
	}
	if got, err := parseWhen(""); got != nil || err != nil {
		t.Errorf("Expected nil for an empty value, got %v, %v", got, err)
	}
	if _, err := parseWhen("tomorrow"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestDecodeTasks(t *testing.T) {
	input := `{"title": "a", "priority": 3}
{"title": "b", "dueDate": "2024-03-16T00:00:00+0000"}`
	tasks, err := decodeTasks(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decodeTasks failed: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "a" || *tasks[0].Priority != 3 || tasks[1].DueDate == "" {
		t.Errorf("Unexpected tasks %+v", tasks)
	}
	if _, err := decodeTasks(strings.NewReader(`{"title": `)); err == nil {
		t.Errorf("Expected an error for truncated input")
	}
}
