package kitchen

import (
	"time"

	"github.com/hearthware/souschef/pkg/jsontime"
)

// Timer is a countdown created by the agent. The server is authoritative for
// firing (the agent announces completion over audio); the client only derives
// the remaining time for display. Deadlines are absolute so a persisted timer
// survives a client restart with its countdown intact.
type Timer struct {
	ID        string              `json:"id"`
	Label     string              `json:"label,omitempty"`
	Duration  jsontime.DurationMS `json:"duration_ms"`
	CreatedAt jsontime.Milli      `json:"created_at"`

	// Deadline is set while the timer runs; zero when paused.
	Deadline jsontime.Milli `json:"deadline,omitzero"`

	// Paused holds the remaining time while the countdown is frozen.
	// Nil while running.
	Paused *jsontime.DurationMS `json:"paused_ms,omitempty"`
}

// newTimer builds a timer from a SetTimer control, stamped at now.
func newTimer(ctl *SetTimer, now time.Time) *Timer {
	t := &Timer{
		ID:        ctl.ID,
		Label:     ctl.Label,
		Duration:  ctl.Duration,
		CreatedAt: jsontime.Milli(now),
	}
	if ctl.AutoStart {
		t.Deadline = jsontime.Milli(now.Add(ctl.Duration.Duration()))
	} else {
		d := ctl.Duration
		t.Paused = &d
	}
	return t
}

// Running reports whether the countdown is ticking.
func (t *Timer) Running() bool {
	return t.Paused == nil && !t.Deadline.IsZero()
}

// Remaining returns the time left at now, clamped at zero.
func (t *Timer) Remaining(now time.Time) time.Duration {
	if t.Paused != nil {
		return t.Paused.Duration()
	}
	if t.Deadline.IsZero() {
		return t.Duration.Duration()
	}
	left := t.Deadline.Time().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Fired reports whether the countdown reached zero at now.
func (t *Timer) Fired(now time.Time) bool {
	return t.Running() && !t.Deadline.Time().After(now)
}

// Pause freezes the countdown, preserving the remaining time.
// Pausing a paused or never-started timer is a no-op.
func (t *Timer) Pause(now time.Time) {
	if !t.Running() {
		return
	}
	left := jsontime.DurationMS(t.Remaining(now))
	t.Paused = &left
	t.Deadline = jsontime.Milli{}
}

// Resume restarts a paused timer from its preserved remaining time.
// Resuming a running timer is a no-op.
func (t *Timer) Resume(now time.Time) {
	if t.Paused == nil {
		return
	}
	t.Deadline = jsontime.Milli(now.Add(t.Paused.Duration()))
	t.Paused = nil
}

// Clone returns a deep copy of the timer.
func (t *Timer) Clone() *Timer {
	if t == nil {
		return nil
	}
	v := *t
	if t.Paused != nil {
		p := *t.Paused
		v.Paused = &p
	}
	return &v
}
