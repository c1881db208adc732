package ticktick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/harrisonrobin/tickmirror/pkg/transport"
	"golang.org/x/oauth2"
)

const (
	fakeToken     = "session-token"
	fakeOpenToken = "open-token"
	fakeInbox     = "inbox100"
)

type record = map[string]any

// fakeService is an in-memory stand-in for the remote service.
type fakeService struct {
	t  *testing.T
	mu sync.Mutex

	seq      int
	projects []record
	folders  []record
	tags     []record
	tasks    []record

	// hideTasks drops tasks from the full-state answer.
	hideTasks bool
	// completeAnswer is written as the body of task completions.
	completeAnswer string
	lastBody  map[string]json.RawMessage
	lastQuery map[string]url.Values
	calls     []string
}

func newFakeService(t *testing.T) *fakeService {
	f := &fakeService{t: t, lastBody: map[string]json.RawMessage{}, lastQuery: map[string]url.Values{}}
	f.projects = []record{{"id": "p1", "name": "Work", "etag": f.etag()}, {"id": "p2", "name": "Home", "etag": f.etag()}}
	f.folders = []record{{"id": "f1", "name": "Areas", "etag": f.etag()}}
	f.tags = []record{{"name": "errand", "label": "Errand", "etag": f.etag()}}
	f.tasks = []record{
		{"id": "t1", "projectId": "p1", "title": "write report", "etag": f.etag()},
		{"id": "t2", "projectId": "p1", "title": "file report", "etag": f.etag()},
		{"id": "t3", "projectId": "p2", "title": "water plants", "etag": f.etag()},
	}
	return f
}

func (f *fakeService) etag() string {
	f.seq++
	return fmt.Sprintf("etag%d", f.seq)
}

func (f *fakeService) newID() string {
	f.seq++
	return fmt.Sprintf("srv%d", f.seq)
}

func newTestClient(t *testing.T) (*Client, *fakeService) {
	t.Helper()
	f := newFakeService(t)
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	policy := transport.DefaultPolicy()
	policy.Retries = 0
	c, err := New(context.Background(), Options{
		Username:    "me@example.com",
		Password:    "secret",
		BaseURL:     srv.URL + "/api/v2/",
		OpenAPIURL:  srv.URL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: fakeOpenToken, TokenType: "Bearer"}),
		HTTPClient:  srv.Client(),
		Policy:      &policy,
		Logger:      log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, f
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	f.calls = append(f.calls, r.Method+" "+path)
	f.lastBody[path] = raw
	f.lastQuery[path] = r.URL.Query()

	if strings.HasPrefix(path, "/open/v1/") {
		if r.Header.Get("Authorization") != "Bearer "+fakeOpenToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		f.open(w, r.Method, strings.TrimPrefix(path, "/open/v1/"), raw)
		return
	}

	path = strings.TrimPrefix(path, "/api/v2/")
	if path == "user/signon" {
		var creds map[string]string
		json.Unmarshal(raw, &creds)
		if creds["password"] != "secret" {
			http.Error(w, `{"errorCode":"username_password_not_match"}`, http.StatusBadRequest)
			return
		}
		writeJSON(w, record{"token": fakeToken})
		return
	}
	if c, err := r.Cookie("t"); err != nil || c.Value != fakeToken {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	if r.Header.Get("x-device") == "" {
		http.Error(w, "no device", http.StatusBadRequest)
		return
	}

	switch {
	case path == "user/preferences/settings":
		writeJSON(w, record{"timeZone": "America/New_York", "id": "profile1"})
	case path == "batch/check/0":
		tasks := f.tasks
		if f.hideTasks {
			tasks = []record{}
		}
		writeJSON(w, record{
			"inboxId":         fakeInbox,
			"projectGroups":   f.folders,
			"projectProfiles": f.projects,
			"syncTaskBean":    record{"update": tasks},
			"tags":            f.tags,
		})
	case path == "batch/task":
		f.batchTask(w, raw)
	case path == "batch/taskParent":
		var links []record
		json.Unmarshal(raw, &links)
		ack := map[string]string{}
		for _, l := range links {
			if t := find(f.tasks, "id", l["taskId"]); t != nil {
				t["parentId"] = l["parentId"]
				t["etag"] = f.etag()
				ack[t["id"].(string)] = t["etag"].(string)
			}
		}
		writeJSON(w, record{"id2etag": ack, "id2error": record{}})
	case path == "batch/taskProject":
		var moves []record
		json.Unmarshal(raw, &moves)
		ack := map[string]string{}
		for _, m := range moves {
			if t := find(f.tasks, "id", m["taskId"]); t != nil {
				t["projectId"] = m["toProjectId"]
				t["etag"] = f.etag()
				ack[t["id"].(string)] = t["etag"].(string)
			}
		}
		writeJSON(w, record{"id2etag": ack, "id2error": record{}})
	case path == "project/all/completed":
		var done []record
		for _, t := range f.tasks {
			if t["status"] == float64(2) {
				done = append(done, t)
			}
		}
		if done == nil {
			done = []record{}
		}
		writeJSON(w, done)
	case path == "batch/tag":
		f.batchTag(w, raw)
	case path == "tag/rename" && r.Method == http.MethodPut:
		var req map[string]string
		json.Unmarshal(raw, &req)
		if t := find(f.tags, "name", req["name"]); t != nil {
			t["label"] = req["newName"]
			t["name"] = strings.ToLower(req["newName"])
			t["etag"] = f.etag()
		}
	case path == "tag/merge" && r.Method == http.MethodPut:
		var req map[string]string
		json.Unmarshal(raw, &req)
		f.tags = without(f.tags, "name", req["name"])
	case path == "tag" && r.Method == http.MethodDelete:
		f.tags = without(f.tags, "name", r.URL.Query().Get("name"))
	case path == "batch/project":
		var req struct {
			Delete []string `json:"delete"`
		}
		json.Unmarshal(raw, &req)
		for _, id := range req.Delete {
			for find(f.tasks, "projectId", id) != nil {
				f.tasks = without(f.tasks, "projectId", id)
			}
		}
		f.projects = f.batch(w, raw, f.projects, "id", false)
	case path == "batch/projectGroup":
		f.folders = f.batch(w, raw, f.folders, "id", true)
	default:
		http.Error(w, "unknown endpoint "+path, http.StatusNotFound)
	}
}

func (f *fakeService) open(w http.ResponseWriter, method, path string, raw []byte) {
	parts := strings.Split(path, "/")
	switch {
	case path == "task" && method == http.MethodPost:
		var task record
		json.Unmarshal(raw, &task)
		task["id"] = f.newID()
		if task["projectId"] == nil {
			task["projectId"] = fakeInbox
		}
		task["etag"] = f.etag()
		f.tasks = append(f.tasks, task)
		writeJSON(w, task)
	case len(parts) == 2 && parts[0] == "task":
		var task record
		json.Unmarshal(raw, &task)
		existing := find(f.tasks, "id", parts[1])
		if existing == nil {
			http.Error(w, "no task", http.StatusNotFound)
			return
		}
		for k, v := range task {
			existing[k] = v
		}
		existing["etag"] = f.etag()
		writeJSON(w, existing)
	case len(parts) == 5 && parts[0] == "project" && parts[4] == "complete":
		if t := find(f.tasks, "id", parts[3]); t != nil {
			t["status"] = float64(2)
			t["etag"] = f.etag()
		}
		io.WriteString(w, f.completeAnswer)
	default:
		http.Error(w, "unknown endpoint "+path, http.StatusNotFound)
	}
}

func (f *fakeService) batchTask(w http.ResponseWriter, raw []byte) {
	var req struct {
		Add    []record `json:"add"`
		Delete []record `json:"delete"`
	}
	json.Unmarshal(raw, &req)
	ack := map[string]string{}
	for _, t := range req.Add {
		t["etag"] = f.etag()
		f.tasks = append(f.tasks, t)
		ack[t["id"].(string)] = t["etag"].(string)
	}
	for _, ref := range req.Delete {
		f.tasks = without(f.tasks, "id", ref["taskId"])
	}
	writeJSON(w, record{"id2etag": ack, "id2error": record{}})
}

func (f *fakeService) batchTag(w http.ResponseWriter, raw []byte) {
	var req struct {
		Add    []record `json:"add"`
		Update []record `json:"update"`
	}
	json.Unmarshal(raw, &req)
	ack := map[string]string{}
	for _, t := range req.Add {
		t["etag"] = f.etag()
		f.tags = append(f.tags, t)
		ack[t["name"].(string)] = t["etag"].(string)
	}
	for _, t := range req.Update {
		f.tags = without(f.tags, "name", t["name"])
		t["etag"] = f.etag()
		f.tags = append(f.tags, t)
		ack[t["name"].(string)] = t["etag"].(string)
	}
	writeJSON(w, record{"id2etag": ack, "id2error": record{}})
}

// batch applies an add/update/delete request to a collection keyed by id.
func (f *fakeService) batch(w http.ResponseWriter, raw []byte, coll []record, key string, assignIDs bool) []record {
	var req struct {
		Add    []record `json:"add"`
		Update []record `json:"update"`
		Delete []string `json:"delete"`
	}
	json.Unmarshal(raw, &req)
	ack := map[string]string{}
	for _, e := range req.Add {
		if assignIDs {
			e[key] = f.newID()
		}
		e["etag"] = f.etag()
		coll = append(coll, e)
		ack[e[key].(string)] = e["etag"].(string)
	}
	for _, e := range req.Update {
		coll = without(coll, key, e[key])
		e["etag"] = f.etag()
		coll = append(coll, e)
		ack[e[key].(string)] = e["etag"].(string)
	}
	for _, id := range req.Delete {
		coll = without(coll, key, id)
	}
	writeJSON(w, record{"id2etag": ack, "id2error": record{}})
	return coll
}

func (f *fakeService) body(path string, v any) {
	f.t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := json.Unmarshal(f.lastBody[path], v); err != nil {
		f.t.Fatalf("Failed to decode last body of %s: %v", path, err)
	}
}

func (f *fakeService) query(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery[path]
}

func (f *fakeService) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func find(coll []record, key string, value any) record {
	for _, e := range coll {
		if e[key] == value {
			return e
		}
	}
	return nil
}

func without(coll []record, key string, value any) []record {
	out := make([]record, 0, len(coll))
	for _, e := range coll {
		if e[key] != value {
			out = append(out, e)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
