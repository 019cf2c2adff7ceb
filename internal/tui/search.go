// Package tui provides the interactive search-as-you-type terminal view.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/limudai/limud/internal/highlight"
	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/search"
)

// resultsMsg carries a result list delivered by the controller.
type resultsMsg struct {
	results []*models.SearchResult
}

// Option configures a Model.
type Option func(*Model)

// WithStyles overrides the default styles.
func WithStyles(s *Styles) Option {
	return func(m *Model) {
		if s != nil {
			m.styles = s
		}
	}
}

// WithControllerOptions passes options through to the underlying search.Controller.
func WithControllerOptions(opts ...search.ControllerOption) Option {
	return func(m *Model) { m.controllerOpts = append(m.controllerOpts, opts...) }
}

// Model is the bubbletea model for the search view. Typing and option toggles
// feed a debounced search.Controller; result lists come back through a
// one-slot channel that always holds the latest list.
type Model struct {
	styles         *Styles
	input          textinput.Model
	controller     *search.Controller
	controllerOpts []search.ControllerOption
	updates        chan []*models.SearchResult
	done           chan struct{}

	opts     models.SearchOptions
	results  []*models.SearchResult
	selected int
	width    int
	height   int
	closed   bool
}

// New creates the search view around fn, typically Engine.Search.
func New(fn search.SearchFunc, opts ...Option) *Model {
	ti := textinput.New()
	ti.Placeholder = "Search transcripts..."
	ti.CharLimit = 256
	ti.Width = 50
	ti.Focus()

	m := &Model{
		styles:  DefaultStyles(),
		input:   ti,
		updates: make(chan []*models.SearchResult, 1),
		done:    make(chan struct{}),
		results: []*models.SearchResult{},
	}
	for _, opt := range opts {
		opt(m)
	}
	copts := append(m.controllerOpts, search.WithResultsListener(m.publish))
	m.controller = search.NewController(fn, copts...)
	return m
}

// publish replaces any undelivered list with the newest one. The controller
// serializes listener calls, so the send never blocks.
func (m *Model) publish(results []*models.SearchResult) {
	select {
	case <-m.updates:
	default:
	}
	m.updates <- results
}

// waitForResults blocks until the controller publishes a result list.
func (m *Model) waitForResults() tea.Cmd {
	return func() tea.Msg {
		select {
		case r := <-m.updates:
			return resultsMsg{results: r}
		case <-m.done:
			return nil
		}
	}
}

// Init starts the cursor blink and the results listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForResults())
}

// Update handles key presses, window resizes and delivered results.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if w := msg.Width - 12; w > 10 {
			m.input.Width = w
		}
		return m, nil

	case resultsMsg:
		m.results = msg.results
		if m.selected >= len(m.results) {
			m.selected = max(0, len(m.results)-1)
		}
		return m, m.waitForResults()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.Close()
			return m, tea.Quit
		case "esc":
			if m.input.Value() == "" {
				m.Close()
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.results = []*models.SearchResult{}
			m.selected = 0
			m.controller.Clear()
			return m, nil
		case "ctrl+t":
			m.opts.CaseSensitive = !m.opts.CaseSensitive
			m.controller.SetOptions(m.opts)
			return m, nil
		case "ctrl+w":
			m.opts.WholeWords = !m.opts.WholeWords
			m.controller.SetOptions(m.opts)
			return m, nil
		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down":
			if m.selected < len(m.results)-1 {
				m.selected++
			}
			return m, nil
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.controller.SetQuery(v)
	}
	return m, cmd
}

// View renders the search view.
func (m *Model) View() string {
	sections := make([]string, 0, 8)
	sections = append(sections,
		m.styles.Title.Render("Limud transcript search"),
		"",
		m.styles.Title.Render("Search: ")+m.input.View(),
		m.renderToggles(),
		"",
	)
	if err := m.controller.State().Err; err != nil {
		sections = append(sections, m.styles.Error.Render("Error: "+err.Error()), "")
	}
	sections = append(sections, m.renderResults())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderToggles() string {
	toggle := func(on bool, label string) string {
		if on {
			return m.styles.ToggleOn.Render("[x] " + label)
		}
		return m.styles.ToggleOff.Render("[ ] " + label)
	}
	return strings.Join([]string{
		toggle(m.opts.CaseSensitive, "case (ctrl+t)"),
		toggle(m.opts.WholeWords, "whole words (ctrl+w)"),
		m.styles.Muted.Render(m.controller.Phase().String()),
	}, "  ")
}

func (m *Model) renderResults() string {
	if strings.TrimSpace(m.input.Value()) == "" {
		return m.styles.Muted.Render("Type to search. esc clears, esc again quits.")
	}
	if len(m.results) == 0 {
		return m.styles.Muted.Render("No matches")
	}
	limit := len(m.results)
	if m.height > 0 {
		limit = min(limit, max(1, (m.height-8)/2))
	}
	start := 0
	if m.selected >= limit {
		start = m.selected - limit + 1
	}
	lines := make([]string, 0, 2*limit+1)
	lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("%d documents", len(m.results))))
	for i := start; i < len(m.results) && i < start+limit; i++ {
		r := m.results[i]
		title := fmt.Sprintf("%s (%d)", r.Document.Name, r.MatchCount)
		if i == m.selected {
			lines = append(lines, m.styles.Selected.Render("> "+title))
		} else {
			lines = append(lines, m.styles.Normal.Render("  "+title))
		}
		if len(r.Matches) > 0 {
			snippet := highlight.Terminal(highlight.WindowSegments(r.Matches[0], r.Matches), m.styles.Highlight)
			lines = append(lines, "    "+strings.Join(strings.Fields(snippet), " "))
		}
	}
	out := strings.Join(lines, "\n")
	if m.width > 0 {
		out = lipgloss.NewStyle().MaxWidth(m.width).Render(out)
	}
	return out
}

// Results returns the currently displayed results.
func (m *Model) Results() []*models.SearchResult {
	return m.results
}

// Options returns the current toggle state.
func (m *Model) Options() models.SearchOptions {
	return m.opts
}

// Selected returns the index of the highlighted result.
func (m *Model) Selected() int {
	return m.selected
}

// Query returns the current input text.
func (m *Model) Query() string {
	return m.input.Value()
}

// Controller exposes the underlying controller.
func (m *Model) Controller() *search.Controller {
	return m.controller
}

// Close stops the controller and releases the results listener.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.controller.Close()
	close(m.done)
}

// Run starts an interactive program and blocks until the user quits.
func Run(fn search.SearchFunc, opts ...Option) error {
	m := New(fn, opts...)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
