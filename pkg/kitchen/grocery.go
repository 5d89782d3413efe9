package kitchen

import "strings"

// GroceryItem is one line of the shopping list.
type GroceryItem struct {
	Name     string `json:"name" msgpack:"name"`
	Quantity string `json:"quantity,omitempty" msgpack:"quantity"`
	Checked  bool   `json:"checked,omitempty" msgpack:"checked"`
}

// GroceryList is an ordered shopping list. Item names are matched
// case-insensitively; all edits are idempotent.
type GroceryList struct {
	Items []GroceryItem `json:"items" msgpack:"items"`
}

// find returns the index of the item with the given name, or -1.
func (g *GroceryList) find(name string) int {
	for i := range g.Items {
		if strings.EqualFold(g.Items[i].Name, name) {
			return i
		}
	}
	return -1
}

// Add appends an item, or updates the quantity of an existing one.
func (g *GroceryList) Add(item GroceryItem) {
	if i := g.find(item.Name); i >= 0 {
		if item.Quantity != "" {
			g.Items[i].Quantity = item.Quantity
		}
		return
	}
	g.Items = append(g.Items, item)
}

// Remove deletes the named item. Removing a missing item is a no-op.
func (g *GroceryList) Remove(name string) {
	if i := g.find(name); i >= 0 {
		g.Items = append(g.Items[:i], g.Items[i+1:]...)
	}
}

// SetChecked marks the named item checked or unchecked.
// Unknown names are a no-op.
func (g *GroceryList) SetChecked(name string, checked bool) {
	if i := g.find(name); i >= 0 {
		g.Items[i].Checked = checked
	}
}

// Clone returns a deep copy of the list.
func (g *GroceryList) Clone() GroceryList {
	return GroceryList{Items: append([]GroceryItem(nil), g.Items...)}
}

// apply executes one UpdateGrocery control in order: add, remove, check,
// uncheck.
func (g *GroceryList) apply(ctl *UpdateGrocery) {
	for _, item := range ctl.Add {
		g.Add(item)
	}
	for _, name := range ctl.Remove {
		g.Remove(name)
	}
	for _, name := range ctl.Check {
		g.SetChecked(name, true)
	}
	for _, name := range ctl.Uncheck {
		g.SetChecked(name, false)
	}
}
