package kitchen

// Recipe is the cook-along document the agent installs into a session.
type Recipe struct {
	Title       string       `json:"title" msgpack:"title"`
	Description string       `json:"description,omitempty" msgpack:"description"`
	Servings    int          `json:"servings,omitempty" msgpack:"servings"`
	Ingredients []Ingredient `json:"ingredients,omitempty" msgpack:"ingredients"`
	Steps       []Step       `json:"steps" msgpack:"steps"`
}

// Ingredient is one line of the recipe's ingredient list.
type Ingredient struct {
	Name     string  `json:"name" msgpack:"name"`
	Quantity float64 `json:"quantity,omitempty" msgpack:"quantity"`
	Unit     string  `json:"unit,omitempty" msgpack:"unit"`
}

// Step is a single instruction. Hint carries an optional expected duration
// so the UI can propose a timer for the step.
type Step struct {
	Text string `json:"text" msgpack:"text"`
	Hint int64  `json:"hint_ms,omitempty" msgpack:"hint_ms"`
}

// Clone returns a deep copy of the recipe.
func (r *Recipe) Clone() *Recipe {
	if r == nil {
		return nil
	}
	v := *r
	v.Ingredients = append([]Ingredient(nil), r.Ingredients...)
	v.Steps = append([]Step(nil), r.Steps...)
	return &v
}

// clampStep bounds a step index to the recipe's valid range.
func (r *Recipe) clampStep(idx int) int {
	if idx < 0 {
		return 0
	}
	if last := len(r.Steps) - 1; idx > last {
		return last
	}
	return idx
}

// Dish is a single suggestion from the agent ("you could make...").
type Dish struct {
	Name        string   `json:"name" msgpack:"name"`
	Description string   `json:"description,omitempty" msgpack:"description"`
	Tags        []string `json:"tags,omitempty" msgpack:"tags"`
}
