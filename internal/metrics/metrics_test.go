package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/feedfm/fmsession/internal/metrics"
)

func TestMetricsExposition(t *testing.T) {
	m := metrics.New()
	m.Event("player", "state-change")
	m.Event("player", "state-change")
	m.Suppressed("player", "duplicate-state")
	m.Command("streamer", "connect", metrics.OutcomeNoop)
	m.GaugeFunc("sse_subscribers", "Connected SSE clients.", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`fmsession_engine_events_total{event="state-change",source="player"} 2`,
		`fmsession_events_suppressed_total{reason="duplicate-state",source="player"} 1`,
		`fmsession_commands_total{command="connect",outcome="noop",source="streamer"} 1`,
		`fmsession_sse_subscribers 3`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.Event("player", "x")
	m.Suppressed("player", "x")
	m.Command("player", "x", metrics.OutcomeSent)
	m.GaugeFunc("x", "x", func() float64 { return 0 })
}
