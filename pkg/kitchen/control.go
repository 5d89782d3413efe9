package kitchen

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/hearthware/souschef/pkg/jsontime"
)

// Ensure all control types implement Control.
var (
	_ Control = (*SetTimer)(nil)
	_ Control = (*CancelTimer)(nil)
	_ Control = (*PauseTimer)(nil)
	_ Control = (*ResumeTimer)(nil)
	_ Control = (*SetRecipe)(nil)
	_ Control = (*StepRecipe)(nil)
	_ Control = (*SuggestDishes)(nil)
	_ Control = (*UpdateGrocery)(nil)
	_ Control = (*AskCamera)(nil)
	_ Control = (*Say)(nil)
)

// ErrUnknownControl is returned when an envelope carries an unrecognized
// type. Callers should log and keep consuming; an unknown control must not
// tear down the connection.
var ErrUnknownControl = errors.New("kitchen: unknown control type")

// Control is the interface for agent control messages delivered on the data
// side-channel alongside the audio stream.
type Control interface {
	isControl()
	controlType() string
}

// ControlEvent wraps a control message with wire metadata.
type ControlEvent struct {
	Type    string         `json:"type"`
	Time    jsontime.Milli `json:"t"`
	Payload Control        `json:"pld"`
}

// NewControlEvent creates an envelope for the given control, stamped at.
func NewControlEvent(ctl Control, at time.Time) *ControlEvent {
	return &ControlEvent{
		Type:    ctl.controlType(),
		Time:    jsontime.Milli(at),
		Payload: ctl,
	}
}

// UnmarshalJSON implements json.Unmarshaler, dispatching on the type field.
func (e *ControlEvent) UnmarshalJSON(b []byte) error {
	var v struct {
		Type    string          `json:"type"`
		Time    jsontime.Milli  `json:"t"`
		Payload json.RawMessage `json:"pld"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	var ctl Control
	switch v.Type {
	case "timer.set":
		ctl = new(SetTimer)
	case "timer.cancel":
		ctl = new(CancelTimer)
	case "timer.pause":
		ctl = new(PauseTimer)
	case "timer.resume":
		ctl = new(ResumeTimer)
	case "recipe.set":
		ctl = new(SetRecipe)
	case "recipe.step":
		ctl = new(StepRecipe)
	case "dish.suggest":
		ctl = new(SuggestDishes)
	case "grocery.update":
		ctl = new(UpdateGrocery)
	case "camera.ask":
		ctl = new(AskCamera)
	case "say":
		ctl = new(Say)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownControl, v.Type)
	}

	if len(v.Payload) > 0 {
		if err := json.Unmarshal(v.Payload, ctl); err != nil {
			return fmt.Errorf("kitchen: decode %s payload: %w", v.Type, err)
		}
	}

	*e = ControlEvent{
		Type:    v.Type,
		Time:    v.Time,
		Payload: ctl,
	}
	return nil
}

// DecodeControlEvent parses a control envelope from raw bytes. The payloads
// originate from an LLM toolchain, so on a JSON syntax error the input is
// repaired once and re-parsed before giving up.
func DecodeControlEvent(b []byte) (*ControlEvent, error) {
	var e ControlEvent
	err := json.Unmarshal(b, &e)
	if err == nil {
		return &e, nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return nil, err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(b))
	if rerr != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fixed), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// SetTimer creates (or replaces) a named countdown timer.
type SetTimer struct {
	ID       string              `json:"id"`
	Label    string              `json:"label,omitempty"`
	Duration jsontime.DurationMS `json:"duration_ms"`

	// AutoStart starts the countdown immediately. When false the timer is
	// created paused at its full duration.
	AutoStart bool `json:"auto_start,omitempty"`
}

func (*SetTimer) isControl()          {}
func (*SetTimer) controlType() string { return "timer.set" }

// CancelTimer removes a timer by ID.
type CancelTimer string

func (*CancelTimer) isControl()          {}
func (*CancelTimer) controlType() string { return "timer.cancel" }

func (c CancelTimer) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

func (c *CancelTimer) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = CancelTimer(v)
	return nil
}

// PauseTimer freezes a running timer, preserving its remaining time.
type PauseTimer string

func (*PauseTimer) isControl()          {}
func (*PauseTimer) controlType() string { return "timer.pause" }

func (c PauseTimer) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

func (c *PauseTimer) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = PauseTimer(v)
	return nil
}

// ResumeTimer restarts a paused timer from its preserved remaining time.
type ResumeTimer string

func (*ResumeTimer) isControl()          {}
func (*ResumeTimer) controlType() string { return "timer.resume" }

func (c ResumeTimer) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

func (c *ResumeTimer) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = ResumeTimer(v)
	return nil
}

// SetRecipe installs a recipe and resets the step cursor to the first step.
type SetRecipe struct {
	Recipe Recipe `json:"recipe"`
}

func (*SetRecipe) isControl()          {}
func (*SetRecipe) controlType() string { return "recipe.set" }

// StepRecipe moves the step cursor. Exactly one of Index or Delta is used:
// a non-nil Index jumps to that absolute step, otherwise Delta moves
// relatively. Out-of-range targets clamp to the valid step range.
type StepRecipe struct {
	Index *int `json:"index,omitempty"`
	Delta int  `json:"delta,omitempty"`
}

func (*StepRecipe) isControl()          {}
func (*StepRecipe) controlType() string { return "recipe.step" }

// SuggestDishes replaces the current dish suggestion list.
type SuggestDishes struct {
	Dishes []Dish `json:"dishes"`
}

func (*SuggestDishes) isControl()          {}
func (*SuggestDishes) controlType() string { return "dish.suggest" }

// UpdateGrocery edits the grocery list. All operations in one event apply
// atomically, in the order add, remove, check, uncheck.
type UpdateGrocery struct {
	Add     []GroceryItem `json:"add,omitempty"`
	Remove  []string      `json:"remove,omitempty"`
	Check   []string      `json:"check,omitempty"`
	Uncheck []string      `json:"uncheck,omitempty"`
}

func (*UpdateGrocery) isControl()          {}
func (*UpdateGrocery) controlType() string { return "grocery.update" }

// AskCamera asks the client to enable or disable its camera, e.g. so the
// agent can look at the pan.
type AskCamera struct {
	Enable bool   `json:"enable"`
	Reason string `json:"reason,omitempty"`
}

func (*AskCamera) isControl()          {}
func (*AskCamera) controlType() string { return "camera.ask" }

// Say carries the agent's spoken transcript for captioning. Partial
// transcripts stream with Final=false; the closing event sets Final.
type Say struct {
	Text  string `json:"text"`
	Final bool   `json:"final,omitempty"`
}

func (*Say) isControl()          {}
func (*Say) controlType() string { return "say" }
