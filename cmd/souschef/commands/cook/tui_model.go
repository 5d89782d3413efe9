package cook

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hearthware/souschef/pkg/cli"
	"github.com/hearthware/souschef/pkg/kitchen"
	"github.com/hearthware/souschef/pkg/tui"
)

// Model is the bubbletea model for the cook-along TUI.
type Model struct {
	client *Client
	view   *tui.View

	// Log writer for capturing log output
	logWriter  *cli.LogWriter
	logContent []string

	// UI
	styles cli.Styles
	width  int
	height int

	quitting bool
}

// NewModel creates the TUI model.
func NewModel(client *Client, logWriter *cli.LogWriter) Model {
	return Model{
		client:    client,
		view:      tui.NewView(cli.DefaultTheme),
		logWriter: logWriter,
		styles:    cli.NewStyles(cli.DefaultTheme),
	}
}

// LogMsg wraps log messages for bubbletea.
type LogMsg string

// TickMsg is sent periodically to refresh timer countdowns.
type TickMsg time.Time

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listenLogs(), m.tick())
}

func (m Model) listenLogs() tea.Cmd {
	if m.logWriter == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-m.logWriter.Channel()
		if !ok {
			return nil
		}
		return LogMsg(line)
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyTab:
			m.cycleTab(1)
		case tea.KeyShiftTab:
			m.cycleTab(-1)
		case tea.KeyRunes:
			if len(msg.Runes) != 1 {
				break
			}
			switch msg.Runes[0] {
			case 'q':
				m.quitting = true
				return m, tea.Quit
			case '1':
				m.client.Session().SetTab(kitchen.TabSteps)
			case '2':
				m.client.Session().SetTab(kitchen.TabTimers)
			case '3':
				m.client.Session().SetTab(kitchen.TabGrocery)
			case '4':
				m.client.Session().SetTab(kitchen.TabDishes)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, m.tick()

	case LogMsg:
		m.logContent = append(m.logContent, string(msg))
		if len(m.logContent) > 200 {
			m.logContent = m.logContent[len(m.logContent)-200:]
		}
		return m, m.listenLogs()
	}

	return m, nil
}

func (m Model) cycleTab(delta int) {
	snap := m.client.Session().Snapshot()
	next := (int(snap.Tab) + delta + 4) % 4
	m.client.Session().SetTab(kitchen.Tab(next))
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	snap := m.client.Session().Snapshot()
	now := time.Now()

	content := func() []string {
		switch snap.Tab {
		case kitchen.TabTimers:
			return m.view.TimerLines(snap, now)
		case kitchen.TabGrocery:
			return m.view.GroceryLines(snap)
		case kitchen.TabDishes:
			return m.view.DishLines(snap)
		default:
			return m.view.StepsLines(snap)
		}
	}

	frame := cli.Frame{
		Styles: m.styles,
		Title:  m.view.Header(snap),
		Status: m.view.StatusLine(snap),
		Sections: []cli.Section{
			{Label: " " + snap.Tab.String() + " ", Content: content},
			{Label: " log ", Content: func() []string { return m.logContent }},
		},
		Help: m.view.TabBar(snap) + "  " +
			m.styles.Help.Render("tab/1-4: switch · q: quit"),
	}
	return frame.Render(m.width, m.height)
}
