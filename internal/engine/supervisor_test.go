package engine_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/feedfm/fmsession/internal/engine"
)

func TestSupervisor_StartStop(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	sup := engine.NewSupervisor("test-sleep", func() *exec.Cmd {
		return exec.Command("sleep", "10")
	}, nil)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if sup.Pid() == 0 {
		t.Error("expected non-zero PID after start")
	}
	if err := sup.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
	if pid := sup.Pid(); pid != 0 {
		t.Errorf("expected PID 0 after stop, got %d", pid)
	}
	if sup.Running() {
		t.Error("supervisor still running after Stop")
	}
}

func TestSupervisor_DoubleStart(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	sup := engine.NewSupervisor("test-double", func() *exec.Cmd {
		return exec.Command("sleep", "10")
	}, nil)

	ctx := context.Background()
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := sup.Start(ctx); err != nil {
		t.Errorf("second Start() should not fail: %v", err)
	}
	_ = sup.Stop()
}

func TestSupervisor_ContextCancel(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup := engine.NewSupervisor("test-ctx", func() *exec.Cmd {
		return exec.Command("sleep", "10")
	}, nil)
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for sup.Running() {
		if time.Now().After(deadline) {
			t.Fatal("supervisor did not exit after context cancellation")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSupervisor_MissingBinaryGivesUp(t *testing.T) {
	sup := engine.NewSupervisor("test-missing", func() *exec.Cmd {
		return exec.Command("/nonexistent/fm-engine-helper")
	}, nil)
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sup.Running() {
		if time.Now().After(deadline) {
			t.Fatal("supervisor kept retrying a missing binary")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestBridge_SupervisedHelper(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	b := engine.NewBridge(engine.BridgeOptions{})
	sup := b.Supervise([]string{"sh", "-c", `echo '{"target":"player","event":"musicQueued"}'; sleep 10`})
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer sup.Stop()

	select {
	case ev := <-b.Player().Events():
		if ev.Name != engine.EventMusicQueued {
			t.Errorf("event = %q, want musicQueued", ev.Name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event from helper")
	}
}
