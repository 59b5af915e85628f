package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/feedfm/fmsession/internal/engine"
	"github.com/feedfm/fmsession/internal/models"
	"github.com/feedfm/fmsession/internal/session"
)

func TestService_Lifecycle(t *testing.T) {
	var engines []*engine.Mock
	svc := session.NewService(func() engine.Engine {
		m := engine.NewMock()
		engines = append(engines, m)
		return m
	})

	if _, err := svc.Player(); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("Player() before Initialize error = %v", err)
	}

	ctx := context.Background()
	p1, err := svc.Initialize(ctx, session.Config{Token: "tok"})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	args := engines[0].CallsTo("InitializeWithToken")[0].Args
	if args[0] != "tok" || args[1] != "demo" {
		t.Errorf("credentials = %v, want tok/demo", args)
	}

	p2, err := svc.Initialize(ctx, session.Config{Token: "other"})
	if err != nil || p2 != p1 {
		t.Errorf("repeat Initialize returned %p, %v; want existing player", p2, err)
	}
	if len(engines) != 1 {
		t.Errorf("engines created = %d, want 1", len(engines))
	}

	svc.Shutdown()
	if err := p1.Play(); !errors.Is(err, models.ErrClosed) {
		t.Errorf("old player Play() error = %v, want ErrClosed", err)
	}
	if _, err := svc.Player(); !errors.Is(err, models.ErrNotInitialized) {
		t.Errorf("Player() after Shutdown error = %v", err)
	}

	p3, err := svc.Initialize(ctx, session.Config{})
	if err != nil || p3 == p1 {
		t.Fatalf("Initialize after Shutdown = %p, %v; want a new player", p3, err)
	}
	if len(engines) != 2 {
		t.Errorf("engines created = %d, want 2", len(engines))
	}
	svc.Shutdown()
	svc.Shutdown()
}

func TestService_StartsSimulator(t *testing.T) {
	svc := session.NewService(func() engine.Engine {
		return engine.NewSimulator(engine.SimulatorOptions{})
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer svc.Shutdown()

	p, err := svc.Initialize(ctx, session.Config{})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	ok, err := p.WaitAvailable(ctx)
	if err != nil || !ok {
		t.Fatalf("WaitAvailable() = %v, %v", ok, err)
	}
	if len(p.Snapshot().Stations) == 0 {
		t.Error("simulator stations not applied")
	}
}
