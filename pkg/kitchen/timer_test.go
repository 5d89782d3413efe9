package kitchen

import (
	"testing"
	"time"

	"github.com/hearthware/souschef/pkg/jsontime"
)

func TestTimer_AutoStart(t *testing.T) {
	start := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	tm := newTimer(&SetTimer{ID: "t1", Duration: jsontime.DurationMS(10 * time.Minute), AutoStart: true}, start)

	if !tm.Running() {
		t.Fatal("auto-started timer should be running")
	}
	if got := tm.Remaining(start); got != 10*time.Minute {
		t.Errorf("Remaining at start = %v; want 10m", got)
	}
	if got := tm.Remaining(start.Add(4 * time.Minute)); got != 6*time.Minute {
		t.Errorf("Remaining after 4m = %v; want 6m", got)
	}
	if tm.Fired(start.Add(9 * time.Minute)) {
		t.Error("Fired before deadline")
	}
	if !tm.Fired(start.Add(10 * time.Minute)) {
		t.Error("not Fired at deadline")
	}
	if got := tm.Remaining(start.Add(11 * time.Minute)); got != 0 {
		t.Errorf("Remaining past deadline = %v; want 0", got)
	}
}

func TestTimer_CreatedPaused(t *testing.T) {
	start := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	tm := newTimer(&SetTimer{ID: "t1", Duration: jsontime.DurationMS(5 * time.Minute)}, start)

	if tm.Running() {
		t.Fatal("timer without auto_start should be paused")
	}
	// Remaining is frozen at the full duration no matter how much wall
	// time passes.
	if got := tm.Remaining(start.Add(time.Hour)); got != 5*time.Minute {
		t.Errorf("Remaining = %v; want 5m", got)
	}
	if tm.Fired(start.Add(time.Hour)) {
		t.Error("paused timer must never fire")
	}
}

func TestTimer_PauseResume(t *testing.T) {
	start := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	tm := newTimer(&SetTimer{ID: "t1", Duration: jsontime.DurationMS(10 * time.Minute), AutoStart: true}, start)

	tm.Pause(start.Add(3 * time.Minute))
	if tm.Running() {
		t.Fatal("paused timer reports running")
	}
	if got := tm.Remaining(start.Add(30 * time.Minute)); got != 7*time.Minute {
		t.Errorf("Remaining while paused = %v; want 7m", got)
	}

	// Pausing again is a no-op.
	tm.Pause(start.Add(40 * time.Minute))
	if got := tm.Remaining(start.Add(40 * time.Minute)); got != 7*time.Minute {
		t.Errorf("Remaining after double pause = %v; want 7m", got)
	}

	resumeAt := start.Add(time.Hour)
	tm.Resume(resumeAt)
	if !tm.Running() {
		t.Fatal("resumed timer not running")
	}
	if got := tm.Remaining(resumeAt.Add(2 * time.Minute)); got != 5*time.Minute {
		t.Errorf("Remaining after resume+2m = %v; want 5m", got)
	}

	// Resuming a running timer is a no-op.
	deadline := tm.Deadline
	tm.Resume(resumeAt.Add(3 * time.Minute))
	if !tm.Deadline.Equal(deadline) {
		t.Error("Resume on running timer moved the deadline")
	}
}

func TestTimer_Clone(t *testing.T) {
	start := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	tm := newTimer(&SetTimer{ID: "t1", Duration: jsontime.DurationMS(time.Minute)}, start)

	cp := tm.Clone()
	cp.Resume(start)
	if tm.Running() {
		t.Error("mutating the clone resumed the original")
	}
}
