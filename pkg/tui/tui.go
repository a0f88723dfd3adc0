// Package tui provides a terminal user interface for midi2wav
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/james-see/midi2wav/pkg/config"
	"github.com/james-see/midi2wav/pkg/converter"
	"github.com/james-see/midi2wav/pkg/engine/soft"
	"github.com/james-see/midi2wav/pkg/player"
)

// Concert-hall color scheme
var (
	// Primary colors - brass and ivory
	brass     = lipgloss.Color("#D4A017")
	ivory     = lipgloss.Color("#FFFFF0")
	velvet    = lipgloss.Color("#8B0000")
	darkGray  = lipgloss.Color("#333333")
	mutedGray = lipgloss.Color("#666666")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(brass).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(ivory).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(brass).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(ivory).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brass).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(velvet).
			Padding(1, 2)
)

// pollInterval is how often the engine gets its housekeeping call while
// something plays.
const pollInterval = 20 * time.Millisecond

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateRendering
	StateResult
)

// Action is what a menu item does.
type Action int

const (
	ActionBank Action = iota
	ActionPlay
	ActionStop
	ActionRender
	ActionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      Action
	// AllowedTypes filters the file picker for the action.
	AllowedTypes []string
}

var menuItems = []MenuItem{
	{Title: "Instrument bank", Description: "Choose the SoundFont used to play and render MIDI", Action: ActionBank, AllowedTypes: []string{".sf2", ".dls"}},
	{Title: "Play", Description: "Play a MIDI or WAV file", Action: ActionPlay, AllowedTypes: []string{".mid", ".midi", ".wav"}},
	{Title: "Stop", Description: "Stop playback", Action: ActionStop},
	{Title: "MIDI → WAV", Description: "Render a MIDI file to WAV with the chosen bank", Action: ActionRender, AllowedTypes: []string{".mid", ".midi"}},
	{Title: "Exit", Description: "Exit the application", Action: ActionExit},
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	session      *player.Session
	conv         *converter.Converter
	action       MenuItem
	nowPlaying   string
	playGen      int
	selectedFile string
	outputFile   string
	report       *converter.Report
	status       string
	err          error
	width        int
	height       int
}

// tickMsg drives playback housekeeping for one Play call.
type tickMsg struct {
	gen int
}

// renderDoneMsg signals render completion
type renderDoneMsg struct {
	outputFile string
	report     *converter.Report
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model playing through session and rendering through conv
func New(session *player.Session, conv *converter.Converter) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi", ".wav"}
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(brass)

	return Model{
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
		session:    session,
		conv:       conv,
	}
}

func tick(gen int) tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Playback keeps ticking whatever screen is shown
	if t, ok := msg.(tickMsg); ok {
		return m.updatePlayback(t)
	}

	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		// Check for escape/quit keys first
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		// Pass all other messages to the file picker
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		// Check if file was selected
		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			return m.selectFile(path)
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case renderDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.report = msg.report
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updatePlayback(t tickMsg) (tea.Model, tea.Cmd) {
	if m.nowPlaying == "" || t.gen != m.playGen {
		return m, nil
	}
	if err := m.session.Update(); err != nil {
		m.status = err.Error()
	}
	if !m.session.IsPlaying() {
		m.status = fmt.Sprintf("Finished %s", filepath.Base(m.nowPlaying))
		m.nowPlaying = ""
		return m, nil
	}
	return m, tick(m.playGen)
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		return m.choose(menuItems[m.menuIndex])
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) choose(item MenuItem) (tea.Model, tea.Cmd) {
	m.action = item
	switch item.Action {
	case ActionExit:
		return m, tea.Quit
	case ActionStop:
		if err := m.session.Stop(); err != nil {
			m.status = err.Error()
		} else if m.nowPlaying != "" {
			m.status = fmt.Sprintf("Stopped %s", filepath.Base(m.nowPlaying))
		}
		m.nowPlaying = ""
		return m, nil
	case ActionRender:
		if m.session.InstrumentBank() == "" {
			m.state = StateResult
			m.err = errors.New("choose an instrument bank first")
			return m, nil
		}
	}

	m.state = StateFilePicker
	// Set file picker filter based on the action
	m.filePicker.AllowedTypes = item.AllowedTypes
	return m, m.filePicker.Init()
}

// selectFile runs the pending action on path.
func (m Model) selectFile(path string) (tea.Model, tea.Cmd) {
	m.selectedFile = path
	switch m.action.Action {
	case ActionBank:
		m.session.SetInstrumentBank(path)
		m.status = fmt.Sprintf("Bank: %s", filepath.Base(path))
		m.state = StateMenu
		return m, nil
	case ActionPlay:
		m.state = StateMenu
		if err := m.session.Play(path); err != nil {
			m.status = err.Error()
		}
		if !m.session.IsPlaying() {
			m.nowPlaying = ""
			return m, nil
		}
		m.nowPlaying = path
		m.playGen++
		m.status = fmt.Sprintf("Playing %s", filepath.Base(path))
		return m, tick(m.playGen)
	case ActionRender:
		m.state = StateRendering
		return m, tea.Batch(m.spinner.Tick, m.performRender(path, m.session.InstrumentBank()))
	}
	m.state = StateMenu
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputFile = ""
		m.report = nil
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performRender(input, bank string) tea.Cmd {
	conv := m.conv
	return func() tea.Msg {
		output := converter.OutputPath(input, "")
		report, err := conv.Convert(context.Background(), converter.Request{
			MIDIPath: input,
			BankPath: bank,
			WAVPath:  output,
		})
		return renderDoneMsg{outputFile: output, report: report, err: err}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	// Header
	header := asciiLogo()
	s.WriteString(header)
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateRendering:
		s.WriteString(m.viewRendering())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" MIDI2WAV "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(brass).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	bank := m.session.InstrumentBank()
	if bank == "" {
		bank = "none"
	}
	s.WriteString(statusStyle.Render(fmt.Sprintf("Bank: %s", filepath.Base(bank))))
	if m.nowPlaying != "" {
		s.WriteString("\n")
		s.WriteString(successStyle.Render(fmt.Sprintf("♪ %s", filepath.Base(m.nowPlaying))))
	}
	if m.status != "" {
		s.WriteString("\n")
		s.WriteString(statusStyle.Render(m.status))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s: SELECT FILE ", strings.ToUpper(m.action.Title))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewRendering() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" RENDERING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Rendering %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  bank: %s", filepath.Base(m.session.InstrumentBank()))))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Render complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output: %s", filepath.Base(m.outputFile)))
		if m.report != nil {
			s.WriteString(fmt.Sprintf("\nLength: %s (%d updates)", m.report.Length, m.report.Steps))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
   __  __ ___ ____ ___ ____  __        ___ __     __
  |  \/  |_ _|  _ \_ _|___ \ \ \      / / \\ \   / /
  | |\/| || || | | | |  __) | \ \ /\ / / _ \\ \ / /
  | |  | || || |_| | | / __/   \ V  V / ___ \\ V /
  |_|  |_|___|____/___|_____|   \_/\_/_/   \_\\_/
`
	return lipgloss.NewStyle().Foreground(brass).Render(logo)
}

// Run starts the TUI application with the software engine configured by cfg.
// Log output should not go to the terminal the TUI draws on.
func Run(cfg config.Config, logger logrus.FieldLogger) error {
	factory := soft.Factory(soft.Options{Logger: logger})
	session, err := player.New(factory,
		player.WithLogger(logger),
		player.WithStrict(cfg.Strict),
		player.WithMaxChannels(cfg.MaxChannels),
		player.WithLowPassGain(cfg.LowPassGain),
	)
	if session == nil {
		return err
	}
	defer func() { _ = session.Destroy() }()
	session.SetInstrumentBank(cfg.Bank)

	conv := converter.New(factory, converter.OptionsFromConfig(cfg))
	conv.SetLogger(logger)

	m := New(session, conv)
	if err != nil {
		m.status = err.Error()
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
