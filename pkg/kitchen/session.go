package kitchen

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthware/souschef/pkg/jsontime"
)

// Session errors.
var (
	// ErrNoRecipe is returned when a step control arrives before any recipe.
	ErrNoRecipe = errors.New("kitchen: no recipe installed")

	// ErrUnknownTimer is returned when pausing or resuming a timer that
	// does not exist.
	ErrUnknownTimer = errors.New("kitchen: unknown timer")
)

// Tab identifies which pane of the cook-along UI has focus.
type Tab int

const (
	TabSteps Tab = iota
	TabTimers
	TabGrocery
	TabDishes
)

// String returns the tab name.
func (t Tab) String() string {
	switch t {
	case TabTimers:
		return "timers"
	case TabGrocery:
		return "grocery"
	case TabDishes:
		return "dishes"
	default:
		return "steps"
	}
}

// MarshalJSON implements json.Marshaler.
func (t Tab) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tab) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "timers":
		*t = TabTimers
	case "grocery":
		*t = TabGrocery
	case "dishes":
		*t = TabDishes
	default:
		*t = TabSteps
	}
	return nil
}

// Session is the client-side cook-along state, mutated exclusively by
// inbound control events and rendered by snapshots. Safe for concurrent use.
type Session struct {
	id   string
	room string

	// now overrides the clock for tests.
	now func() time.Time

	mu           sync.RWMutex
	agent        AgentStateEvent
	recipe       *Recipe
	step         int
	timers       map[string]*Timer
	grocery      GroceryList
	dishes       []Dish
	cameraOn     bool
	cameraReason string
	caption      Say
	tab          Tab
	stats        Stats

	watchers map[chan struct{}]struct{}
}

// NewSession creates an empty session for a room. An empty id mints one.
func NewSession(room, id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		id:       id,
		room:     room,
		now:      time.Now,
		agent:    AgentStateEvent{Version: 1, State: AgentIdle},
		timers:   make(map[string]*Timer),
		watchers: make(map[chan struct{}]struct{}),
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Room returns the room name.
func (s *Session) Room() string { return s.room }

// Apply dispatches one control event into the session state. Decode-level
// problems (unknown types, malformed payloads) never reach Apply; the errors
// it returns are domain-level and should be logged, not treated as fatal.
func (s *Session) Apply(e *ControlEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.countEvent(e.Type)

	switch ctl := e.Payload.(type) {
	case *SetTimer:
		s.timers[ctl.ID] = newTimer(ctl, s.now())
		s.tab = TabTimers
	case *CancelTimer:
		delete(s.timers, string(*ctl))
	case *PauseTimer:
		t, ok := s.timers[string(*ctl)]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTimer, string(*ctl))
		}
		t.Pause(s.now())
	case *ResumeTimer:
		t, ok := s.timers[string(*ctl)]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTimer, string(*ctl))
		}
		t.Resume(s.now())
	case *SetRecipe:
		recipe := ctl.Recipe
		s.recipe = &recipe
		s.step = 0
		s.tab = TabSteps
	case *StepRecipe:
		if s.recipe == nil || len(s.recipe.Steps) == 0 {
			return ErrNoRecipe
		}
		target := s.step + ctl.Delta
		if ctl.Index != nil {
			target = *ctl.Index
		}
		s.step = s.recipe.clampStep(target)
		s.tab = TabSteps
	case *SuggestDishes:
		s.dishes = append([]Dish(nil), ctl.Dishes...)
		s.tab = TabDishes
	case *UpdateGrocery:
		s.grocery.apply(ctl)
		s.tab = TabGrocery
	case *AskCamera:
		s.cameraOn = ctl.Enable
		s.cameraReason = ctl.Reason
	case *Say:
		s.caption = *ctl
	default:
		return fmt.Errorf("%w: %T", ErrUnknownControl, e.Payload)
	}

	s.notifyLocked()
	return nil
}

// ApplyRaw decodes a wire control envelope and applies it.
func (s *Session) ApplyRaw(b []byte) (*ControlEvent, error) {
	e, err := DecodeControlEvent(b)
	if err != nil {
		return nil, err
	}
	return e, s.Apply(e)
}

// SetAgentState merges an agent state event. Returns true if the visible
// state changed.
func (s *Session) SetAgentState(ev *AgentStateEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.agent.MergeWith(ev)
	if changed {
		s.notifyLocked()
	}
	return changed
}

// SetTab moves UI focus. User-driven; control events may override it.
func (s *Session) SetTab(tab Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tab == tab {
		return
	}
	s.tab = tab
	s.notifyLocked()
}

// CountAudioFrames adds to the session's audio frame counters.
func (s *Session) CountAudioFrames(in, out, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.countAudio(in, out, dropped)
}

// Snapshot returns a deep copy of the current state for rendering,
// serialization, and persistence. Timers are ordered by creation time.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	timers := make([]*Timer, 0, len(s.timers))
	for _, t := range s.timers {
		timers = append(timers, t.Clone())
	}
	sort.Slice(timers, func(i, j int) bool {
		if !timers[i].CreatedAt.Equal(timers[j].CreatedAt) {
			return timers[i].CreatedAt.Before(timers[j].CreatedAt)
		}
		return timers[i].ID < timers[j].ID
	})

	return &Snapshot{
		ID:           s.id,
		Room:         s.room,
		Agent:        *s.agent.Clone(),
		Recipe:       s.recipe.Clone(),
		Step:         s.step,
		Timers:       timers,
		Grocery:      s.grocery.Clone(),
		Dishes:       append([]Dish(nil), s.dishes...),
		CameraOn:     s.cameraOn,
		CameraReason: s.cameraReason,
		Caption:      s.caption,
		Tab:          s.tab,
		Stats:        *s.stats.Clone(),
		TakenAt:      jsontime.Milli(s.now()),
	}
}

// Watch registers a change listener. The returned channel receives a
// non-blocking tick after every state change; slow listeners miss ticks
// rather than stalling Apply. The cancel func unregisters the listener.
func (s *Session) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Session) notifyLocked() {
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// restore loads persisted state into the session. Used by the store.
func (s *Session) restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipe = snap.Recipe.Clone()
	s.step = snap.Step
	s.timers = make(map[string]*Timer, len(snap.Timers))
	for _, t := range snap.Timers {
		s.timers[t.ID] = t.Clone()
	}
	s.grocery = snap.Grocery.Clone()
	s.dishes = append([]Dish(nil), snap.Dishes...)
	s.tab = snap.Tab
}

// Snapshot is an immutable copy of session state.
type Snapshot struct {
	ID           string          `json:"id"`
	Room         string          `json:"room"`
	Agent        AgentStateEvent `json:"agent"`
	Recipe       *Recipe         `json:"recipe,omitempty"`
	Step         int             `json:"step"`
	Timers       []*Timer        `json:"timers"`
	Grocery      GroceryList     `json:"grocery"`
	Dishes       []Dish          `json:"dishes,omitempty"`
	CameraOn     bool            `json:"camera_on"`
	CameraReason string          `json:"camera_reason,omitempty"`
	Caption      Say             `json:"caption"`
	Tab          Tab             `json:"tab"`
	Stats        Stats           `json:"stats"`
	TakenAt      jsontime.Milli  `json:"taken_at"`
}
