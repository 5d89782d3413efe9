// Package kitchen implements the cooking-assistant session protocol: the
// control messages an agent sends alongside its audio stream, the spoken
// agent state, and the client-side session state they drive.
package kitchen

import (
	"encoding/json"
	"time"

	"github.com/hearthware/souschef/pkg/jsontime"
)

// AgentState describes what the voice agent is doing right now.
type AgentState int

const (
	AgentUnknown AgentState = iota
	AgentIdle
	AgentListening
	AgentThinking
	AgentSpeaking
	AgentInterrupted
)

// String returns the wire representation of the state.
func (as AgentState) String() string {
	switch as {
	case AgentIdle:
		return "idle"
	case AgentListening:
		return "listening"
	case AgentThinking:
		return "thinking"
	case AgentSpeaking:
		return "speaking"
	case AgentInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Busy reports whether the agent is mid-turn (thinking or speaking).
func (as AgentState) Busy() bool {
	return as == AgentThinking || as == AgentSpeaking
}

// MarshalJSON implements json.Marshaler.
func (as AgentState) MarshalJSON() ([]byte, error) {
	return json.Marshal(as.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (as *AgentState) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "idle":
		*as = AgentIdle
	case "listening":
		*as = AgentListening
	case "thinking":
		*as = AgentThinking
	case "speaking":
		*as = AgentSpeaking
	case "interrupted":
		*as = AgentInterrupted
	default:
		*as = AgentUnknown
	}
	return nil
}

// AgentStateEvent is a state change announcement from the agent.
type AgentStateEvent struct {
	Version  int            `json:"v"`
	Time     jsontime.Milli `json:"t"`
	State    AgentState     `json:"s"`
	UpdateAt jsontime.Milli `json:"ut"`
}

// NewAgentStateEvent creates an event for state, effective at updateAt.
func NewAgentStateEvent(state AgentState, updateAt time.Time) *AgentStateEvent {
	return &AgentStateEvent{
		Version:  1,
		Time:     jsontime.NowEpochMilli(),
		State:    state,
		UpdateAt: jsontime.Milli(updateAt),
	}
}

// Clone returns a copy of the event.
func (e *AgentStateEvent) Clone() *AgentStateEvent {
	if e == nil {
		return nil
	}
	v := *e
	return &v
}

// MergeWith merges a newer event into this one. Events with an unknown
// version or an older timestamp are ignored, which makes the merge tolerant
// of transport reordering. Returns true if the visible state changed.
func (e *AgentStateEvent) MergeWith(other *AgentStateEvent) bool {
	if other.Version != 1 {
		return false
	}
	if other.Time.Before(e.Time) {
		return false
	}
	e.Time = other.Time
	e.UpdateAt = other.UpdateAt
	if e.State != other.State {
		e.State = other.State
		return true
	}
	return false
}
