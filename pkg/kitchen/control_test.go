package kitchen

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hearthware/souschef/pkg/jsontime"
)

func TestControlEvent_JSON(t *testing.T) {
	at := time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

	cancel := CancelTimer("t1")
	pause := PauseTimer("t1")
	resume := ResumeTimer("t1")

	tests := []struct {
		name string
		ctl  Control
		typ  string
	}{
		{"set_timer", &SetTimer{ID: "t1", Label: "pasta", Duration: jsontime.DurationMS(8 * time.Minute), AutoStart: true}, "timer.set"},
		{"cancel_timer", &cancel, "timer.cancel"},
		{"pause_timer", &pause, "timer.pause"},
		{"resume_timer", &resume, "timer.resume"},
		{"set_recipe", &SetRecipe{Recipe: Recipe{Title: "carbonara", Steps: []Step{{Text: "boil water"}}}}, "recipe.set"},
		{"step_recipe_delta", &StepRecipe{Delta: 1}, "recipe.step"},
		{"step_recipe_index", &StepRecipe{Index: intPtr(3)}, "recipe.step"},
		{"suggest_dishes", &SuggestDishes{Dishes: []Dish{{Name: "risotto"}}}, "dish.suggest"},
		{"update_grocery", &UpdateGrocery{Add: []GroceryItem{{Name: "eggs", Quantity: "6"}}, Check: []string{"guanciale"}}, "grocery.update"},
		{"ask_camera", &AskCamera{Enable: true, Reason: "check the sauce"}, "camera.ask"},
		{"say", &Say{Text: "looking good", Final: true}, "say"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event := NewControlEvent(tc.ctl, at)
			if event.Type != tc.typ {
				t.Fatalf("Type = %q; want %q", event.Type, tc.typ)
			}

			data, err := json.Marshal(event)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}

			var restored ControlEvent
			if err := json.Unmarshal(data, &restored); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if restored.Type != tc.typ {
				t.Errorf("restored Type = %q; want %q", restored.Type, tc.typ)
			}
			if !restored.Time.Equal(event.Time) {
				t.Errorf("restored Time = %v; want %v", restored.Time, event.Time)
			}
			if restored.Payload.controlType() != tc.typ {
				t.Errorf("payload type = %q; want %q", restored.Payload.controlType(), tc.typ)
			}
		})
	}
}

func TestControlEvent_UnknownType(t *testing.T) {
	var evt ControlEvent
	err := json.Unmarshal([]byte(`{"type": "oven.preheat", "t": 1700000000000, "pld": {}}`), &evt)
	if !errors.Is(err, ErrUnknownControl) {
		t.Fatalf("err = %v; want ErrUnknownControl", err)
	}
}

func TestControlEvent_MalformedPayload(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"set_timer_wrong", `{"type": "timer.set", "pld": "not_an_object"}`},
		{"cancel_timer_wrong", `{"type": "timer.cancel", "pld": 123}`},
		{"recipe_set_wrong", `{"type": "recipe.set", "pld": [1,2,3]}`},
		{"say_wrong", `{"type": "say", "pld": 42}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var evt ControlEvent
			if err := json.Unmarshal([]byte(tc.input), &evt); err == nil {
				t.Errorf("expected decode error for %s", tc.input)
			}
		})
	}
}

func TestDecodeControlEvent_RepairsSyntax(t *testing.T) {
	// Trailing comma and unquoted key, typical LLM output damage.
	raw := []byte(`{type: "timer.set", "t": 1700000000000, "pld": {"id": "t1", "duration_ms": 60000,}}`)

	evt, err := DecodeControlEvent(raw)
	if err != nil {
		t.Fatalf("DecodeControlEvent error: %v", err)
	}
	set, ok := evt.Payload.(*SetTimer)
	if !ok {
		t.Fatalf("payload = %T; want *SetTimer", evt.Payload)
	}
	if set.ID != "t1" || set.Duration.Milliseconds() != 60000 {
		t.Errorf("payload = %+v", set)
	}
}

func TestDecodeControlEvent_UnknownTypeNotRepaired(t *testing.T) {
	// Valid JSON with an unknown type must not go through repair; the
	// typed error surfaces directly.
	_, err := DecodeControlEvent([]byte(`{"type": "nope", "pld": {}}`))
	if !errors.Is(err, ErrUnknownControl) {
		t.Fatalf("err = %v; want ErrUnknownControl", err)
	}
}

func intPtr(i int) *int { return &i }
