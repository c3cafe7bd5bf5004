// Package tui is a bubbletea terminal client for the capital guessing game.
package tui

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/capitals/apps/go-server/internal/countries"
	"github.com/robalobadob/capitals/apps/go-server/internal/game"
)

const maxShownSuggestions = 5

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	capitalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			Padding(0, 1)

	guessStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	winStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")).Bold(true)
	loseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)

	suggestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AFD7"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
)

// Model is the bubbletea model for one player at the terminal.
type Model struct {
	engine      *game.Engine
	matcher     countries.Matcher
	src         countries.Source
	session     *game.Session
	input       textinput.Model
	suggestions []string
	message     string
	width       int
}

// NewModel starts a first session. src may be nil to use the default
// random source.
func NewModel(eng *game.Engine, matcher countries.Matcher, src countries.Source) (Model, error) {
	ti := textinput.New()
	ti.Placeholder = "Type a country..."
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	m := Model{engine: eng, matcher: matcher, src: src, input: ti}
	s, err := eng.Start(src)
	if err != nil {
		return Model{}, err
	}
	m.session = s
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyTab:
			if len(m.suggestions) > 0 {
				m.input.SetValue(m.suggestions[0])
				m.input.CursorEnd()
				m.refreshSuggestions()
			}
			return m, nil

		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			m.suggestions = nil
			return m.handleLine(line)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refreshSuggestions()
	return m, cmd
}

func (m Model) handleLine(line string) (tea.Model, tea.Cmd) {
	switch line {
	case "/quit":
		return m, tea.Quit
	case "/restart":
		s, err := m.engine.Start(m.src)
		if err != nil {
			m.message = "Could not start a new game: " + err.Error()
			return m, nil
		}
		m.session, m.message = s, "New game started."
		return m, nil
	case "/reveal":
		m.session.Reveal()
		m.message = "The answer is " + m.session.Target.Country + "."
		return m, nil
	case "/hint":
		h, err := m.session.Hint()
		switch {
		case errors.Is(err, game.ErrGameOver):
			m.message = "Game over. Type /restart to play again."
		case err != nil:
			m.message = "No hints for this capital."
		default:
			m.message = fmt.Sprintf("Hint (%s): %s", h.Kind, h.Text)
		}
		return m, nil
	}

	rec, err := m.session.Submit(line)
	switch {
	case errors.Is(err, game.ErrEmptyGuess):
		m.message = "Please enter your guess."
		return m, nil
	case errors.Is(err, game.ErrGameOver):
		m.message = "Game over. Type /restart to play again."
		return m, nil
	}

	switch {
	case rec.Correct:
		m.message = "Congratulations! You guessed it!"
	case m.session.Over:
		m.message = "Game over! The correct answer was " + m.session.Target.Country + "."
	case !rec.Resolved():
		m.message = "Unknown country: " + rec.Text + "."
		if name, ok := m.engine.Dataset().Closest(rec.Text, 2); ok {
			m.message += " Did you mean " + name + "?"
		}
	default:
		m.message = "Incorrect guess. Try again."
	}
	return m, nil
}

func (m *Model) refreshSuggestions() {
	m.suggestions = slices.Collect(m.matcher.Suggest(m.engine.Dataset(), m.input.Value()))
	// an exact match needs no completion
	if len(m.suggestions) == 1 && countries.Normalize(m.suggestions[0]) == countries.Normalize(m.input.Value()) {
		m.suggestions = nil
	}
}

func (m Model) View() string {
	v := m.session.View()

	var b strings.Builder
	b.WriteString(titleStyle.Render("CAPITALS") + "\n\n")
	b.WriteString("Which country has this capital?  " + capitalStyle.Render(v.Capital) + "\n\n")

	if len(v.Guesses) > 0 {
		var lines []string
		for i, g := range v.Guesses {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, describeGuess(g)))
		}
		b.WriteString(guessStyle.Render(strings.Join(lines, "\n")) + "\n\n")
	}
	for _, h := range v.Hints {
		b.WriteString(helpStyle.Render(fmt.Sprintf("%s: %s", h.Kind, h.Text)) + "\n")
	}

	switch v.Status {
	case game.StatusWon:
		b.WriteString(winStyle.Render("You won!") + "\n")
	case game.StatusLost:
		b.WriteString(loseStyle.Render("Out of guesses. It was "+v.Answer.Country+".") + "\n")
	default:
		b.WriteString(fmt.Sprintf("Guesses left: %d/%d\n", v.Remaining, v.MaxGuesses))
	}
	if m.message != "" {
		b.WriteString("\n" + m.message + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	if n := min(len(m.suggestions), maxShownSuggestions); n > 0 {
		b.WriteString(suggestStyle.Render(strings.Join(m.suggestions[:n], "  ")) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("Tab completes. Commands: /hint, /reveal, /restart, /quit."))
	return "\n" + b.String() + "\n"
}

func describeGuess(g game.GuessRecord) string {
	switch {
	case g.Correct:
		return g.Country + " ✓"
	case g.DistanceKm != nil:
		return fmt.Sprintf("%s (%d km away)", g.Country, *g.DistanceKm)
	case g.Resolved():
		return g.Country + " (no distance)"
	default:
		return g.Text + " (unknown)"
	}
}

// Run starts the program full-screen and blocks until the player quits.
func Run(eng *game.Engine, matcher countries.Matcher, src countries.Source) error {
	m, err := NewModel(eng, matcher, src)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
