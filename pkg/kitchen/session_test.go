package kitchen

import (
	"errors"
	"testing"
	"time"

	"github.com/hearthware/souschef/pkg/jsontime"
)

// testClock is a manually advanced clock for session tests.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSession(clock *testClock) *Session {
	s := NewSession("kitchen-1", "sess-1")
	s.now = clock.now
	return s
}

func apply(t *testing.T, s *Session, ctl Control, at time.Time) {
	t.Helper()
	if err := s.Apply(NewControlEvent(ctl, at)); err != nil {
		t.Fatalf("Apply(%s) error: %v", ctl.controlType(), err)
	}
}

func TestSession_TimerLifecycle(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	apply(t, s, &SetTimer{ID: "pasta", Label: "pasta", Duration: jsontime.DurationMS(8 * time.Minute), AutoStart: true}, clock.now())

	snap := s.Snapshot()
	if len(snap.Timers) != 1 {
		t.Fatalf("timers = %d; want 1", len(snap.Timers))
	}
	if snap.Tab != TabTimers {
		t.Errorf("Tab = %v; want timers (timer.set force-focuses)", snap.Tab)
	}

	clock.advance(3 * time.Minute)
	pause := PauseTimer("pasta")
	apply(t, s, &pause, clock.now())

	clock.advance(time.Hour)
	snap = s.Snapshot()
	if got := snap.Timers[0].Remaining(clock.now()); got != 5*time.Minute {
		t.Errorf("Remaining = %v; want 5m", got)
	}

	resume := ResumeTimer("pasta")
	apply(t, s, &resume, clock.now())
	clock.advance(5 * time.Minute)
	if !s.Snapshot().Timers[0].Fired(clock.now()) {
		t.Error("timer should have fired")
	}

	// Cancel is idempotent: canceling twice is fine.
	cancel := CancelTimer("pasta")
	apply(t, s, &cancel, clock.now())
	apply(t, s, &cancel, clock.now())
	if n := len(s.Snapshot().Timers); n != 0 {
		t.Errorf("timers after cancel = %d; want 0", n)
	}
}

func TestSession_UnknownTimer(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	pause := PauseTimer("nope")
	if err := s.Apply(NewControlEvent(&pause, clock.now())); !errors.Is(err, ErrUnknownTimer) {
		t.Errorf("pause err = %v; want ErrUnknownTimer", err)
	}
	resume := ResumeTimer("nope")
	if err := s.Apply(NewControlEvent(&resume, clock.now())); !errors.Is(err, ErrUnknownTimer) {
		t.Errorf("resume err = %v; want ErrUnknownTimer", err)
	}
}

func TestSession_RecipeStepping(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	step := StepRecipe{Delta: 1}
	if err := s.Apply(NewControlEvent(&step, clock.now())); !errors.Is(err, ErrNoRecipe) {
		t.Fatalf("step before recipe err = %v; want ErrNoRecipe", err)
	}

	recipe := Recipe{
		Title: "carbonara",
		Steps: []Step{{Text: "boil water"}, {Text: "fry guanciale"}, {Text: "mix eggs"}, {Text: "combine"}},
	}
	apply(t, s, &SetRecipe{Recipe: recipe}, clock.now())
	if snap := s.Snapshot(); snap.Step != 0 || snap.Tab != TabSteps {
		t.Fatalf("after recipe.set: step=%d tab=%v", snap.Step, snap.Tab)
	}

	tests := []struct {
		name string
		ctl  StepRecipe
		want int
	}{
		{"delta_forward", StepRecipe{Delta: 1}, 1},
		{"delta_forward_again", StepRecipe{Delta: 2}, 3},
		{"delta_past_end_clamps", StepRecipe{Delta: 5}, 3},
		{"absolute_jump", StepRecipe{Index: intPtr(1)}, 1},
		{"delta_back_past_start_clamps", StepRecipe{Delta: -10}, 0},
		{"absolute_past_end_clamps", StepRecipe{Index: intPtr(99)}, 3},
		{"absolute_negative_clamps", StepRecipe{Index: intPtr(-2)}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctl := tc.ctl
			apply(t, s, &ctl, clock.now())
			if got := s.Snapshot().Step; got != tc.want {
				t.Errorf("step = %d; want %d", got, tc.want)
			}
		})
	}

	// A new recipe resets the cursor.
	apply(t, s, &SetRecipe{Recipe: recipe}, clock.now())
	if got := s.Snapshot().Step; got != 0 {
		t.Errorf("step after recipe.set = %d; want 0", got)
	}
}

func TestSession_TabFocus(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	apply(t, s, &SuggestDishes{Dishes: []Dish{{Name: "risotto"}}}, clock.now())
	if got := s.Snapshot().Tab; got != TabDishes {
		t.Errorf("Tab after dish.suggest = %v; want dishes", got)
	}

	apply(t, s, &UpdateGrocery{Add: []GroceryItem{{Name: "rice"}}}, clock.now())
	if got := s.Snapshot().Tab; got != TabGrocery {
		t.Errorf("Tab after grocery.update = %v; want grocery", got)
	}

	// camera.ask does not steal focus.
	apply(t, s, &AskCamera{Enable: true, Reason: "show me the pan"}, clock.now())
	snap := s.Snapshot()
	if snap.Tab != TabGrocery {
		t.Errorf("Tab after camera.ask = %v; want grocery", snap.Tab)
	}
	if !snap.CameraOn || snap.CameraReason != "show me the pan" {
		t.Errorf("camera = %v %q", snap.CameraOn, snap.CameraReason)
	}

	// User tab choice sticks until the next force-focus control.
	s.SetTab(TabSteps)
	if got := s.Snapshot().Tab; got != TabSteps {
		t.Errorf("Tab after SetTab = %v; want steps", got)
	}
}

func TestSession_Caption(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	apply(t, s, &Say{Text: "first, boil"}, clock.now())
	apply(t, s, &Say{Text: "first, boil the water", Final: true}, clock.now())
	snap := s.Snapshot()
	if snap.Caption.Text != "first, boil the water" || !snap.Caption.Final {
		t.Errorf("Caption = %+v", snap.Caption)
	}
}

func TestSession_ApplyRaw(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	// Damaged JSON straight off the wire still applies after repair.
	raw := []byte(`{"type": "timer.set", "pld": {"id": "rice", "duration_ms": 720000, "auto_start": true,}}`)
	evt, err := s.ApplyRaw(raw)
	if err != nil {
		t.Fatalf("ApplyRaw error: %v", err)
	}
	if evt.Type != "timer.set" {
		t.Errorf("Type = %q", evt.Type)
	}
	if n := len(s.Snapshot().Timers); n != 1 {
		t.Errorf("timers = %d; want 1", n)
	}

	if _, err := s.ApplyRaw([]byte(`{"type": "oven.preheat", "pld": {}}`)); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("unknown type err = %v; want ErrUnknownControl", err)
	}
}

func TestSession_SnapshotOrdering(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	apply(t, s, &SetTimer{ID: "b", Duration: jsontime.DurationMS(time.Minute)}, clock.now())
	clock.advance(time.Second)
	apply(t, s, &SetTimer{ID: "a", Duration: jsontime.DurationMS(time.Minute)}, clock.now())

	snap := s.Snapshot()
	if snap.Timers[0].ID != "b" || snap.Timers[1].ID != "a" {
		t.Errorf("order = %s, %s; want creation order b, a", snap.Timers[0].ID, snap.Timers[1].ID)
	}
}

func TestSession_SnapshotIsolation(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)
	apply(t, s, &SetRecipe{Recipe: Recipe{Title: "x", Steps: []Step{{Text: "a"}}}}, clock.now())

	snap := s.Snapshot()
	snap.Recipe.Title = "mutated"
	snap.Grocery.Add(GroceryItem{Name: "salt"})
	if s.Snapshot().Recipe.Title != "x" {
		t.Error("snapshot shares recipe memory with session")
	}
	if len(s.Snapshot().Grocery.Items) != 0 {
		t.Error("snapshot shares grocery memory with session")
	}
}

func TestSession_Watch(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	ch, cancel := s.Watch()
	defer cancel()

	apply(t, s, &Say{Text: "hi"}, clock.now())
	select {
	case <-ch:
	default:
		t.Fatal("no tick after Apply")
	}

	// Two changes without a read coalesce into one pending tick; the
	// watcher never blocks Apply.
	apply(t, s, &Say{Text: "a"}, clock.now())
	apply(t, s, &Say{Text: "b"}, clock.now())
	<-ch
	select {
	case <-ch:
		t.Fatal("ticks were queued instead of coalesced")
	default:
	}

	cancel()
	apply(t, s, &Say{Text: "c"}, clock.now())
	select {
	case <-ch:
		t.Fatal("tick after cancel")
	default:
	}
}

func TestSession_AgentState(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	ev := NewAgentStateEvent(AgentListening, clock.now())
	ev.Time = jsontime.Milli(clock.now())
	if !s.SetAgentState(ev) {
		t.Fatal("state change not reported")
	}
	if got := s.Snapshot().Agent.State; got != AgentListening {
		t.Errorf("Agent.State = %v; want listening", got)
	}

	// Stale events leave the session untouched.
	stale := NewAgentStateEvent(AgentSpeaking, clock.now().Add(-time.Minute))
	stale.Time = jsontime.Milli(clock.now().Add(-time.Minute))
	if s.SetAgentState(stale) {
		t.Error("stale event reported as change")
	}
}

func TestSession_Stats(t *testing.T) {
	clock := newTestClock()
	s := newTestSession(clock)

	apply(t, s, &Say{Text: "hi"}, clock.now())
	apply(t, s, &SetTimer{ID: "t", Duration: jsontime.DurationMS(time.Minute)}, clock.now())
	s.CountAudioFrames(10, 4, 1)

	st := s.Snapshot().Stats
	if st.ControlEvents != 2 {
		t.Errorf("ControlEvents = %d; want 2", st.ControlEvents)
	}
	if st.EventsByType["say"] != 1 || st.EventsByType["timer.set"] != 1 {
		t.Errorf("EventsByType = %v", st.EventsByType)
	}
	if st.AudioFramesIn != 10 || st.AudioFramesOut != 4 || st.FramesDropped != 1 {
		t.Errorf("audio counters = %d/%d/%d", st.AudioFramesIn, st.AudioFramesOut, st.FramesDropped)
	}
}
