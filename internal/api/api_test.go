package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/feedfm/fmsession/internal/api"
	"github.com/feedfm/fmsession/internal/auth"
	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/events"
	"github.com/feedfm/fmsession/internal/metrics"
	"github.com/feedfm/fmsession/internal/models"
	"github.com/feedfm/fmsession/internal/session"
	"github.com/feedfm/fmsession/internal/streamer"
)

type testEnv struct {
	srv        *httptest.Server
	player     *session.Player
	engine     *engine.Mock
	streamer   *streamer.Streamer
	streamEng  *engine.MockStreamer
	bus        *events.Bus
	authSvc    *auth.Service
	reinitDone int
}

// newTestEnv spins up a full router over mock engines. The player is
// initialized when initialized is true.
func newTestEnv(t *testing.T, initialized bool) *testEnv {
	t.Helper()

	env := &testEnv{
		engine:    engine.NewMock(),
		streamEng: engine.NewMockStreamer(),
		bus:       events.NewBus(),
		authSvc:   auth.NewService(nil), // open mode
	}
	env.player = session.New(env.engine, session.Config{})
	env.streamer = streamer.New(env.streamEng, streamer.Config{})
	if initialized {
		if err := env.player.Initialize(); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
	}

	stopPlayer := events.Relay(env.player.Registry(), env.bus, events.SourcePlayer, nil)
	stopStreamer := events.Relay(env.streamer.Registry(), env.bus, events.SourceStreamer, nil)

	router := api.NewRouter(api.Deps{
		Player: func() (api.Player, error) {
			if !env.player.Snapshot().Initialized {
				return nil, models.ErrNotInitialized
			}
			return env.player, nil
		},
		Streamer: env.streamer,
		Bus:      env.bus,
		Auth:     env.authSvc,
		Info: func() models.Info {
			return models.Info{Hostname: "test", Version: "1.0", Engine: "mock"}
		},
		Metrics: metrics.New().Handler(),
		Reinitialize: func(ctx context.Context) error {
			env.reinitDone++
			return nil
		},
	})
	env.srv = httptest.NewServer(router)
	t.Cleanup(func() {
		env.srv.Close()
		stopPlayer()
		stopStreamer()
		env.player.Close()
		env.streamer.Close()
	})
	return env
}

func (e *testEnv) available() {
	e.player.Handle(engine.RawEvent{Name: engine.EventAvailability, Body: map[string]interface{}{
		"available": true,
		"stations": []interface{}{
			map[string]interface{}{"id": float64(1), "name": "A"},
			map[string]interface{}{"id": float64(2), "name": "B"},
		},
		"activeStationId": float64(1),
		"clientID":        "client-1",
	}})
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body)
	}
}

// --- Tests ---

func TestGetState(t *testing.T) {
	env := newTestEnv(t, true)
	env.available()

	for _, path := range []string{"/api", "/api/"} {
		resp := do(t, env.srv, "GET", path, "")
		requireStatus(t, resp, http.StatusOK)

		var state struct {
			Player   *models.Session         `json:"player"`
			Streamer *models.StreamerSession `json:"streamer"`
		}
		decodeJSON(t, resp, &state)

		if state.Player == nil || len(state.Player.Stations) != 2 {
			t.Errorf("GET %s: player = %+v", path, state.Player)
		}
		if state.Streamer == nil || state.Streamer.State != models.StreamerUninitialized {
			t.Errorf("GET %s: streamer = %+v", path, state.Streamer)
		}
	}
}

func TestGetState_PlayerNotInitialized(t *testing.T) {
	env := newTestEnv(t, false)
	resp := do(t, env.srv, "GET", "/api", "")
	requireStatus(t, resp, http.StatusOK)
	var state map[string]interface{}
	decodeJSON(t, resp, &state)
	if state["player"] != nil {
		t.Errorf("player = %v, want null", state["player"])
	}

	resp = do(t, env.srv, "POST", "/api/player/play", "")
	requireStatus(t, resp, http.StatusConflict)
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["error"] != "NOT_INITIALIZED" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestGetStations(t *testing.T) {
	env := newTestEnv(t, true)
	env.available()

	resp := do(t, env.srv, "GET", "/api/player/stations", "")
	requireStatus(t, resp, http.StatusOK)
	var body struct {
		Stations      []models.Station `json:"stations"`
		ActiveStation *models.Station  `json:"active_station"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Stations) != 2 || body.ActiveStation == nil || body.ActiveStation.ID != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestPlayerCommands(t *testing.T) {
	env := newTestEnv(t, true)
	env.available()

	tests := []struct {
		cmd      string
		method   string
		wantCode int
	}{
		{"play", "Play", http.StatusAccepted},
		{"pause", "Pause", http.StatusAccepted},
		{"stop", "Stop", http.StatusAccepted},
		{"skip", "Skip", http.StatusAccepted},
		{"dance", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			resp := do(t, env.srv, "POST", "/api/player/"+tt.cmd, "")
			requireStatus(t, resp, tt.wantCode)
			resp.Body.Close()
			if tt.method != "" && env.engine.Count(tt.method) != 1 {
				t.Errorf("engine %s calls = %d, want 1", tt.method, env.engine.Count(tt.method))
			}
		})
	}
}

func TestSetPlayerVolume(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"volume":0.25}`, http.StatusOK},
		{"out of range", `{"volume":1.5}`, http.StatusBadRequest},
		{"missing", `{}`, http.StatusBadRequest},
		{"invalid json", `{not valid json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, env.srv, "PATCH", "/api/player/volume", tt.body)
			requireStatus(t, resp, tt.wantCode)
			resp.Body.Close()
		})
	}
	if v := env.player.Snapshot().Volume; v != 0.25 {
		t.Errorf("Volume = %v, want 0.25", v)
	}
}

func TestSetStation(t *testing.T) {
	env := newTestEnv(t, true)
	env.available()

	resp := do(t, env.srv, "PUT", "/api/player/station", `{"id":2}`)
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	resp = do(t, env.srv, "PUT", "/api/player/station/9", "")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = do(t, env.srv, "PUT", "/api/player/station/abc", "")
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	calls := env.engine.CallsTo("SetActiveStation")
	if len(calls) != 1 || calls[0].Args[0] != 2 {
		t.Errorf("SetActiveStation calls = %+v", calls)
	}
}

func TestClientID(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "POST", "/api/player/client_id", `{"client_id":"abc"}`)
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	resp = do(t, env.srv, "POST", "/api/player/client_id", `{}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = do(t, env.srv, "POST", "/api/player/client_id/new", "")
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	if env.engine.Count("SetClientID") != 1 || env.engine.Count("CreateNewClientID") != 1 {
		t.Errorf("calls = %+v", env.engine.Calls())
	}
}

func TestSeekAndLogEvent(t *testing.T) {
	env := newTestEnv(t, true)
	env.available()

	resp := do(t, env.srv, "POST", "/api/player/seek", `{"seconds":15}`)
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	resp = do(t, env.srv, "POST", "/api/player/log_event", `{"name":"tap","params":{"x":1}}`)
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = do(t, env.srv, "POST", "/api/player/log_event", `{}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	if c := env.engine.CallsTo("SeekCurrentStationBy"); len(c) != 1 || c[0].Args[0] != 15.0 {
		t.Errorf("seek calls = %+v", c)
	}
	if env.engine.Count("LogEvent") != 1 {
		t.Error("log event not forwarded")
	}
}

func TestQueries(t *testing.T) {
	env := newTestEnv(t, true)
	env.engine.SetMaxSeekable(42)

	resp := do(t, env.srv, "GET", "/api/player/can_skip", "")
	requireStatus(t, resp, http.StatusOK)
	var skip map[string]bool
	decodeJSON(t, resp, &skip)
	if !skip["can_skip"] {
		t.Errorf("can_skip = %v", skip)
	}

	resp = do(t, env.srv, "GET", "/api/player/max_seekable", "")
	requireStatus(t, resp, http.StatusOK)
	var seekable map[string]float64
	decodeJSON(t, resp, &seekable)
	if seekable["max_seekable_seconds"] != 42 {
		t.Errorf("max_seekable = %v", seekable)
	}

	env.engine.SetFailQuery(true)
	resp = do(t, env.srv, "GET", "/api/player/can_skip", "")
	requireStatus(t, resp, http.StatusInternalServerError)
	resp.Body.Close()
}

func TestAvailable_Wait(t *testing.T) {
	env := newTestEnv(t, true)

	done := make(chan *http.Response, 1)
	go func() {
		resp, err := env.srv.Client().Get(env.srv.URL + "/api/player/available?wait=1")
		if err != nil {
			done <- nil
			return
		}
		done <- resp
	}()

	select {
	case <-done:
		t.Fatal("wait=1 returned before availability resolved")
	case <-time.After(100 * time.Millisecond):
	}

	env.available()

	select {
	case resp := <-done:
		if resp == nil {
			t.Fatal("request failed")
		}
		requireStatus(t, resp, http.StatusOK)
		var body map[string]string
		decodeJSON(t, resp, &body)
		if body["available"] != string(models.Available) {
			t.Errorf("available = %q", body["available"])
		}
	case <-time.After(3 * time.Second):
		t.Fatal("wait=1 did not return after availability resolved")
	}
}

func TestReinitialize(t *testing.T) {
	env := newTestEnv(t, true)
	resp := do(t, env.srv, "POST", "/api/player/reinitialize", "")
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()
	if env.reinitDone != 1 {
		t.Errorf("reinitialize calls = %d", env.reinitDone)
	}
}

func TestStreamerRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "POST", "/api/streamer/connect", `{"token":"A"}`)
	requireStatus(t, resp, http.StatusAccepted)
	var snap models.StreamerSession
	decodeJSON(t, resp, &snap)
	if snap.State != models.StreamerInitializing || snap.Intent.Token != "A" {
		t.Errorf("after connect: %+v", snap)
	}

	resp = do(t, env.srv, "POST", "/api/streamer/switch", `{"token":"B"}`)
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	resp = do(t, env.srv, "POST", "/api/streamer/switch", `{}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = do(t, env.srv, "PATCH", "/api/streamer/volume", `{"volume":0.5}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Disconnect with an empty body is a soft disconnect.
	resp = do(t, env.srv, "POST", "/api/streamer/disconnect", "")
	requireStatus(t, resp, http.StatusAccepted)
	decodeJSON(t, resp, &snap)
	if snap.State != models.StreamerIdle || snap.Intent.Token != "B" {
		t.Errorf("after disconnect: %+v", snap)
	}

	resp = do(t, env.srv, "GET", "/api/streamer", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	calls := env.streamEng.Calls()
	var methods []string
	for _, c := range calls {
		methods = append(methods, c.Method)
	}
	want := "Initialize,Initialize,SetVolume,Disconnect"
	if got := strings.Join(methods, ","); got != want {
		t.Errorf("streamer calls = %s, want %s", got, want)
	}
}

func TestGetInfo(t *testing.T) {
	env := newTestEnv(t, true)
	resp := do(t, env.srv, "GET", "/api/info", "")
	requireStatus(t, resp, http.StatusOK)
	var info models.Info
	decodeJSON(t, resp, &info)
	if info.Hostname != "test" || info.Engine != "mock" {
		t.Errorf("info = %+v", info)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, true)
	env.authSvc.SetKeys([]string{"k"})

	resp := do(t, env.srv, "GET", "/metrics", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestAuth_Protected(t *testing.T) {
	env := newTestEnv(t, true)
	env.authSvc.SetKeys([]string{"k"})

	resp := do(t, env.srv, "GET", "/api", "")
	requireStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = do(t, env.srv, "GET", "/api?api-key=k", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t, true)
	resp := do(t, env.srv, "OPTIONS", "/api/player", "")
	requireStatus(t, resp, http.StatusNoContent)
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	resp.Body.Close()
}

func TestSSESubscribe(t *testing.T) {
	env := newTestEnv(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/subscribe", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	client := &http.Client{
		Transport: &http.Transport{
			DisableCompression: true,
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	next := func() map[string]interface{} {
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var msg map[string]interface{}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
				t.Fatalf("SSE data is not valid JSON: %v", err)
			}
			return msg
		}
		t.Fatal("SSE stream ended")
		return nil
	}

	first := next()
	if first["source"] != "snapshot" || first["player"] == nil || first["streamer"] == nil {
		t.Errorf("first event = %v", first)
	}

	// The subscription is registered before the snapshot is sent, so this
	// notification cannot be missed.
	env.player.Handle(engine.RawEvent{Name: engine.EventStateChange, Body: map[string]interface{}{
		"state": engine.DefaultPlayerCodes.Playing,
	}})

	second := next()
	if second["source"] != events.SourcePlayer || second["kind"] != string(events.KindStateChange) {
		t.Errorf("second event = %v", second)
	}
	data, _ := second["data"].(map[string]interface{})
	if data["state"] != string(models.StatePlaying) {
		t.Errorf("data = %v", data)
	}
}
