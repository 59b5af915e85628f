package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/feedfm/fmsession/internal/engine"
)

func drain(ch <-chan engine.RawEvent) []engine.RawEvent {
	var out []engine.RawEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func names(evs []engine.RawEvent) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Name
	}
	return out
}

func TestSimulator_InitializeAvailable(t *testing.T) {
	sim := engine.NewSimulator(engine.SimulatorOptions{})
	sim.InitializeWithToken("demo", "demo", true)

	evs := drain(sim.Events())
	if len(evs) != 2 {
		t.Fatalf("events = %v, want availability + state-change", names(evs))
	}
	if evs[0].Name != engine.EventAvailability || evs[0].Body["available"] != true {
		t.Errorf("first event = %+v", evs[0])
	}
	if evs[1].Body["state"] != engine.DefaultPlayerCodes.ReadyToPlay {
		t.Errorf("state = %v, want READY_TO_PLAY code", evs[1].Body["state"])
	}

	// Second initialize is ignored.
	sim.InitializeWithToken("demo", "demo", true)
	if evs := drain(sim.Events()); len(evs) != 0 {
		t.Errorf("re-initialize emitted %v", names(evs))
	}
}

func TestSimulator_Unavailable(t *testing.T) {
	sim := engine.NewSimulator(engine.SimulatorOptions{Unavailable: true})
	sim.InitializeWithToken("demo", "demo", true)
	evs := drain(sim.Events())
	if len(evs) == 0 || evs[0].Body["available"] != false {
		t.Fatalf("events = %+v", evs)
	}

	sim.Play()
	if evs := drain(sim.Events()); len(evs) != 0 {
		t.Errorf("play while unavailable emitted %v", names(evs))
	}
}

func TestSimulator_PlayAndSkipLimit(t *testing.T) {
	sim := engine.NewSimulator(engine.SimulatorOptions{SkipLimit: 1})
	sim.InitializeWithToken("demo", "demo", true)
	drain(sim.Events())

	sim.Play()
	evs := drain(sim.Events())
	want := []string{engine.EventStateChange, engine.EventPlayStarted, engine.EventStateChange}
	if got := names(evs); len(got) != len(want) {
		t.Fatalf("play events = %v, want %v", got, want)
	}

	sim.Skip()
	evs = drain(sim.Events())
	if last := evs[len(evs)-1]; last.Name != engine.EventPlayStarted {
		t.Errorf("first skip ended with %q, want play-started", last.Name)
	}

	sim.Skip()
	evs = drain(sim.Events())
	if last := evs[len(evs)-1]; last.Name != engine.EventSkipFailed {
		t.Errorf("second skip ended with %q, want skip-failed", last.Name)
	}
	if ok, _ := sim.CanSkip(context.Background()); ok {
		t.Error("CanSkip should be false once the limit is reached")
	}
}

func TestSimulator_SetActiveStation(t *testing.T) {
	sim := engine.NewSimulator(engine.SimulatorOptions{})
	sim.InitializeWithToken("demo", "demo", true)
	drain(sim.Events())

	sim.SetActiveStation(2)
	evs := drain(sim.Events())
	if got := names(evs); len(got) != 2 || got[0] != engine.EventStationChange || got[1] != engine.EventMusicQueued {
		t.Errorf("events = %v", got)
	}

	sim.SetActiveStation(999)
	if evs := drain(sim.Events()); len(evs) != 0 {
		t.Errorf("unknown station emitted %v", names(evs))
	}
}

func TestSimulator_ElapseTicks(t *testing.T) {
	sim := engine.NewSimulator(engine.SimulatorOptions{Tick: 10 * time.Millisecond})
	sim.InitializeWithToken("demo", "demo", true)
	sim.Play()
	drain(sim.Events())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sim.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sim.Events():
			if ev.Name == engine.EventElapse {
				return
			}
		case <-deadline:
			t.Fatal("no elapse tick")
		}
	}
}

func TestStreamerSimulator_ConnectCycle(t *testing.T) {
	sim := engine.NewStreamerSimulator()
	sim.Initialize("abc")
	evs := drain(sim.Events())
	if len(evs) != 1 || evs[0].Body["state"] != engine.DefaultStreamerCodes.Available {
		t.Fatalf("initialize events = %+v", evs)
	}
	if evs[0].Body["eventToken"] != "abc" {
		t.Errorf("eventToken = %v", evs[0].Body["eventToken"])
	}

	sim.Connect()
	evs = drain(sim.Events())
	if got := names(evs); len(got) != 3 || got[1] != engine.EventPlayStarted {
		t.Errorf("connect events = %v", got)
	}

	sim.Disconnect(false)
	evs = drain(sim.Events())
	if len(evs) != 1 || evs[0].Body["state"] != engine.DefaultStreamerCodes.Stopped {
		t.Errorf("disconnect events = %+v", evs)
	}
}

func TestStreamerSimulator_UnavailableToken(t *testing.T) {
	sim := engine.NewStreamerSimulator()
	sim.Initialize(engine.UnavailableTokenPrefix + "-x")
	evs := drain(sim.Events())
	if len(evs) != 1 || evs[0].Body["state"] != engine.DefaultStreamerCodes.Unavailable {
		t.Fatalf("events = %+v", evs)
	}
}
