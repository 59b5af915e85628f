package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/feedfm/fmsession/internal/models"
)

type recorded struct {
	Method string
	Path   string
	Body   string
	APIKey string
}

// fakeDaemon answers every request with a canned session and records what
// it was asked.
type fakeDaemon struct {
	mu   sync.Mutex
	reqs []recorded
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.reqs = append(f.reqs, recorded{r.Method, r.URL.Path, string(body), r.Header.Get("api-key")})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/player/dance":
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(models.ErrNotFound("unknown player command: dance"))
	case r.URL.Path == "/api":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"player": models.Session{
				Initialized:   true,
				State:         models.StatePlaying,
				Available:     models.Available,
				ActiveStation: &models.Station{ID: 2, Name: "Focus"},
				CurrentPlay:   &models.Play{Title: "Song", Artist: "Band", DurationSeconds: 200},
				Volume:        0.5,
			},
			"streamer": models.DefaultStreamerSession(),
		})
	case strings.HasPrefix(r.URL.Path, "/api/streamer"):
		_ = json.NewEncoder(w).Encode(models.StreamerSession{State: models.StreamerInitializing, Intent: models.StreamerIntent{Token: "tok"}})
	case r.URL.Path == "/api/subscribe":
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"source\":\"snapshot\"}\n\n")
		fmt.Fprint(w, "data: {\"source\":\"player\",\"kind\":\"state-change\",\"data\":{\"state\":\"PAUSED\"}}\n\n")
	default:
		_ = json.NewEncoder(w).Encode(models.Session{Initialized: true, Volume: 0.25})
	}
}

func (f *fakeDaemon) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

// run executes fmctl with args against srv and returns its output.
func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	jsonOut, newClientID, disconnectForce, watchTimestamp = false, false, false, false
	apiKey = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--addr", srv.URL}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newFake(t *testing.T) (*fakeDaemon, *httptest.Server) {
	t.Helper()
	f := &fakeDaemon{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestCommands_Requests(t *testing.T) {
	tests := []struct {
		args   []string
		method string
		path   string
		body   string
	}{
		{[]string{"play"}, "POST", "/api/player/play", ""},
		{[]string{"pause"}, "POST", "/api/player/pause", ""},
		{[]string{"stop"}, "POST", "/api/player/stop", ""},
		{[]string{"skip"}, "POST", "/api/player/skip", ""},
		{[]string{"volume", "0.25"}, "PATCH", "/api/player/volume", `{"volume":0.25}`},
		{[]string{"station", "3"}, "PUT", "/api/player/station", `{"id":3}`},
		{[]string{"client-id", "abc"}, "POST", "/api/player/client_id", `{"client_id":"abc"}`},
		{[]string{"client-id", "--new"}, "POST", "/api/player/client_id/new", ""},
		{[]string{"seek", "30"}, "POST", "/api/player/seek", `{"seconds":30}`},
		{[]string{"reinitialize"}, "POST", "/api/player/reinitialize", ""},
		{[]string{"stream", "connect"}, "POST", "/api/streamer/connect", `{}`},
		{[]string{"stream", "connect", "tok"}, "POST", "/api/streamer/connect", `{"token":"tok"}`},
		{[]string{"stream", "switch", "tok"}, "POST", "/api/streamer/switch", `{"token":"tok"}`},
		{[]string{"stream", "disconnect", "--force"}, "POST", "/api/streamer/disconnect", `{"force":true}`},
		{[]string{"stream", "volume", "0.7"}, "PATCH", "/api/streamer/volume", `{"volume":0.7}`},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			f, srv := newFake(t)
			if _, err := run(t, srv, tt.args...); err != nil {
				t.Fatalf("run: %v", err)
			}
			got := f.last()
			if got.Method != tt.method || got.Path != tt.path {
				t.Errorf("request = %s %s, want %s %s", got.Method, got.Path, tt.method, tt.path)
			}
			if strings.TrimSpace(got.Body) != tt.body {
				t.Errorf("body = %q, want %q", strings.TrimSpace(got.Body), tt.body)
			}
		})
	}
}

func TestCommands_BadArgs(t *testing.T) {
	_, srv := newFake(t)
	for _, args := range [][]string{
		{"volume", "loud"},
		{"station", "abc"},
		{"seek", "x"},
		{"stream", "switch"},
	} {
		if _, err := run(t, srv, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestState_Human(t *testing.T) {
	_, srv := newFake(t)
	out, err := run(t, srv, "state")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"PLAYING", "Focus [2]", "Song - Band (0:00/3:20)", "UNINITIALIZED"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	_, srv := newFake(t)
	out, err := run(t, srv, "--json", "volume", "0.25")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var s models.Session
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if s.Volume != 0.25 {
		t.Errorf("Volume = %v", s.Volume)
	}
}

func TestAPIKeyHeader(t *testing.T) {
	f, srv := newFake(t)
	if _, err := run(t, srv, "--api-key", "secret", "play"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := f.last().APIKey; got != "secret" {
		t.Errorf("api-key = %q", got)
	}
}

func TestClient_ErrorBody(t *testing.T) {
	_, srv := newFake(t)
	c := NewClient(srv.URL, "")
	err := c.Do(context.Background(), http.MethodPost, "/api/player/dance", nil, nil)
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %v, want *models.AppError", err)
	}
	if appErr.Status != http.StatusNotFound || appErr.Code != "NOT_FOUND" {
		t.Errorf("appErr = %+v", appErr)
	}
}

func TestNewClient_Scheme(t *testing.T) {
	tests := []struct{ in, want string }{
		{"localhost:8080", "http://localhost:8080"},
		{"http://box:80/", "http://box:80"},
		{"https://box", "https://box"},
	}
	for _, tt := range tests {
		if got := NewClient(tt.in, "").base; got != tt.want {
			t.Errorf("NewClient(%q).base = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWatch(t *testing.T) {
	_, srv := newFake(t)
	out, err := run(t, srv, "watch")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "[snapshot]\n[player] state-change {\"state\":\"PAUSED\"}\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}
