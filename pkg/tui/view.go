// Package tui renders kitchen session snapshots into terminal frames.
// All render functions are pure: they take a snapshot and a clock reading
// and return strings, so the caller owns the redraw loop.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hearthware/souschef/pkg/cli"
	"github.com/hearthware/souschef/pkg/kitchen"
)

// View renders session snapshots with a cli theme.
type View struct {
	Styles cli.Styles

	checked lipgloss.Style
	active  lipgloss.Style
	fired   lipgloss.Style
}

// NewView creates a view with the given theme.
func NewView(theme cli.Theme) *View {
	return &View{
		Styles:  cli.NewStyles(theme),
		checked: lipgloss.NewStyle().Foreground(theme.Dim).Strikethrough(true),
		active:  lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		fired:   lipgloss.NewStyle().Bold(true).Blink(true),
	}
}

// orb is the glyph shown next to the agent state in the header.
func orb(s kitchen.AgentState) string {
	switch s {
	case kitchen.AgentListening:
		return "◉"
	case kitchen.AgentThinking:
		return "◌"
	case kitchen.AgentSpeaking:
		return "●"
	case kitchen.AgentInterrupted:
		return "◍"
	default:
		return "○"
	}
}

// Header returns the frame title line for a snapshot.
func (v *View) Header(snap *kitchen.Snapshot) string {
	return fmt.Sprintf("souschef · %s %s %s", snap.Room, orb(snap.Agent.State), snap.Agent.State)
}

// TabBar returns the tab row with the focused tab highlighted.
func (v *View) TabBar(snap *kitchen.Snapshot) string {
	tabs := []kitchen.Tab{kitchen.TabSteps, kitchen.TabTimers, kitchen.TabGrocery, kitchen.TabDishes}
	parts := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		name := tab.String()
		if tab == snap.Tab {
			parts = append(parts, v.active.Render("["+name+"]"))
		} else {
			parts = append(parts, v.Styles.Help.Render(" "+name+" "))
		}
	}
	return strings.Join(parts, " ")
}

// StepsLines renders the recipe pane: title, ingredients, and the step list
// with the current step marked.
func (v *View) StepsLines(snap *kitchen.Snapshot) []string {
	if snap.Recipe == nil {
		return []string{v.Styles.Help.Render("no recipe yet — ask for one")}
	}
	r := snap.Recipe

	lines := []string{v.Styles.Label.Render(r.Title)}
	if r.Servings > 0 {
		lines = append(lines, v.Styles.Help.Render(fmt.Sprintf("serves %d", r.Servings)))
	}
	if len(r.Ingredients) > 0 {
		lines = append(lines, "")
		for _, ing := range r.Ingredients {
			lines = append(lines, "  · "+formatIngredient(ing))
		}
	}
	lines = append(lines, "")
	for i, step := range r.Steps {
		text := fmt.Sprintf("%d. %s", i+1, step.Text)
		if step.Hint > 0 {
			text += v.Styles.Help.Render(fmt.Sprintf(" (~%s)", cli.FormatClock(time.Duration(step.Hint)*time.Millisecond)))
		}
		if i == snap.Step {
			lines = append(lines, v.active.Render("▶ ")+text)
		} else {
			lines = append(lines, "  "+text)
		}
	}
	return lines
}

func formatIngredient(ing kitchen.Ingredient) string {
	if ing.Quantity == 0 {
		return ing.Name
	}
	qty := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", ing.Quantity), "0"), ".")
	if ing.Unit != "" {
		return fmt.Sprintf("%s %s %s", qty, ing.Unit, ing.Name)
	}
	return fmt.Sprintf("%s %s", qty, ing.Name)
}

// TimerLines renders one line per timer: label, a progress bar, and the
// remaining time as a clock face.
func (v *View) TimerLines(snap *kitchen.Snapshot, now time.Time) []string {
	if len(snap.Timers) == 0 {
		return []string{v.Styles.Help.Render("no timers")}
	}
	lines := make([]string, 0, len(snap.Timers))
	for _, t := range snap.Timers {
		lines = append(lines, v.timerLine(t, now))
	}
	return lines
}

const timerBarWidth = 20

func (v *View) timerLine(t *kitchen.Timer, now time.Time) string {
	label := t.Label
	if label == "" {
		label = t.ID
	}
	remaining := t.Remaining(now)
	clock := cli.FormatClock(remaining)

	switch {
	case t.Fired(now):
		return fmt.Sprintf("%-16s %s %s", label, progressBar(0, timerBarWidth), v.fired.Render("done!"))
	case !t.Running():
		return fmt.Sprintf("%-16s %s %s", label,
			progressBar(fraction(remaining, t.Duration.Duration()), timerBarWidth),
			v.Styles.Help.Render(clock+" ⏸"))
	default:
		return fmt.Sprintf("%-16s %s %s", label,
			progressBar(fraction(remaining, t.Duration.Duration()), timerBarWidth), clock)
	}
}

func fraction(remaining, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(remaining) / float64(total)
	return min(max(f, 0), 1)
}

// progressBar draws remaining time as a draining bar.
func progressBar(frac float64, width int) string {
	filled := int(frac*float64(width) + 0.5)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// GroceryLines renders the shopping list with check glyphs.
func (v *View) GroceryLines(snap *kitchen.Snapshot) []string {
	if len(snap.Grocery.Items) == 0 {
		return []string{v.Styles.Help.Render("grocery list is empty")}
	}
	lines := make([]string, 0, len(snap.Grocery.Items))
	for _, item := range snap.Grocery.Items {
		text := item.Name
		if item.Quantity != "" {
			text += " (" + item.Quantity + ")"
		}
		if item.Checked {
			lines = append(lines, "☑ "+v.checked.Render(text))
		} else {
			lines = append(lines, "☐ "+text)
		}
	}
	return lines
}

// DishLines renders the agent's dish suggestions.
func (v *View) DishLines(snap *kitchen.Snapshot) []string {
	if len(snap.Dishes) == 0 {
		return []string{v.Styles.Help.Render("no suggestions yet")}
	}
	lines := make([]string, 0, len(snap.Dishes))
	for _, d := range snap.Dishes {
		line := v.Styles.Label.Render(d.Name)
		if d.Description != "" {
			line += " — " + d.Description
		}
		if len(d.Tags) > 0 {
			line += " " + v.Styles.Help.Render("#"+strings.Join(d.Tags, " #"))
		}
		lines = append(lines, line)
	}
	return lines
}

// StatusLine summarizes camera state and caption for the frame footer.
func (v *View) StatusLine(snap *kitchen.Snapshot) string {
	var parts []string
	if snap.CameraOn {
		cam := "camera on"
		if snap.CameraReason != "" {
			cam += ": " + snap.CameraReason
		}
		parts = append(parts, cam)
	}
	if snap.Caption.Text != "" {
		caption := "“" + snap.Caption.Text + "”"
		if !snap.Caption.Final {
			caption += "…"
		}
		parts = append(parts, caption)
	}
	if len(parts) == 0 {
		return snap.Agent.State.String()
	}
	return strings.Join(parts, " · ")
}

// Render composes a full terminal frame for the snapshot. The focused tab's
// pane comes first so it gets the most vertical room.
func (v *View) Render(snap *kitchen.Snapshot, now time.Time, width, height int) string {
	sections := []cli.Section{
		{Label: " steps ", Content: func() []string { return v.StepsLines(snap) }},
		{Label: " timers ", Content: func() []string { return v.TimerLines(snap, now) }},
		{Label: " grocery ", Content: func() []string { return v.GroceryLines(snap) }},
		{Label: " dishes ", Content: func() []string { return v.DishLines(snap) }},
	}
	frame := cli.Frame{
		Styles:   v.Styles,
		Title:    v.Header(snap),
		Status:   v.StatusLine(snap),
		Sections: sections,
		Help:     v.TabBar(snap) + "  " + v.Styles.Help.Render("tab: switch · q: quit"),
	}
	return frame.Render(width, height)
}
