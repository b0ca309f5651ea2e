package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"cacao-server/entities"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("136")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true).
			PaddingLeft(2)

	normalStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("136")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

type step int

const (
	stepEnteringEmail step = iota
	stepEnteringPassword
	stepLoggingIn
	stepListing
	stepDetail
)

type model struct {
	api           *apiClient
	step          step
	email         string
	currentInput  string
	fermentations []fermentation
	cursor        int
	snapshot      *entities.Snapshot
	message       string
	quitting      bool
}

type loginSuccessMsg struct{}
type fermentationsMsg []fermentation
type snapshotMsg struct{ snapshot *entities.Snapshot }
type statusChangedMsg struct{ fermentation fermentation }
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func initialModel(api *apiClient) model {
	return model{api: api, step: stepEnteringEmail}
}

func (m model) Init() tea.Cmd {
	return nil
}

func login(api *apiClient, email, password string) tea.Cmd {
	return func() tea.Msg {
		if err := api.Login(email, password); err != nil {
			return errMsg{err}
		}
		return loginSuccessMsg{}
	}
}

func loadFermentations(api *apiClient) tea.Cmd {
	return func() tea.Msg {
		list, err := api.Fermentations()
		if err != nil {
			return errMsg{err}
		}
		return fermentationsMsg(list)
	}
}

func loadSnapshot(api *apiClient, id string) tea.Cmd {
	return func() tea.Msg {
		s, err := api.Latest(id)
		if errors.Is(err, errNoData) {
			return snapshotMsg{}
		}
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{snapshot: s}
	}
}

func setStatus(api *apiClient, id string, status entities.Status) tea.Cmd {
	return func() tea.Msg {
		f, err := api.SetStatus(id, status)
		if err != nil {
			return errMsg{err}
		}
		return statusChangedMsg{fermentation: *f}
	}
}

func (m model) selected() *fermentation {
	if m.cursor < 0 || m.cursor >= len(m.fermentations) {
		return nil
	}
	return &m.fermentations[m.cursor]
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case loginSuccessMsg:
		m.step = stepListing
		m.message = successStyle.Render("✓ Logged in as " + m.email)
		return m, loadFermentations(m.api)

	case fermentationsMsg:
		m.fermentations = []fermentation(msg)
		if m.cursor >= len(m.fermentations) {
			m.cursor = max(len(m.fermentations)-1, 0)
		}

	case snapshotMsg:
		m.snapshot = msg.snapshot

	case statusChangedMsg:
		for i := range m.fermentations {
			if m.fermentations[i].ID == msg.fermentation.ID {
				m.fermentations[i].Status = msg.fermentation.Status
				m.fermentations[i].EndTime = msg.fermentation.EndTime
			}
		}
		m.message = successStyle.Render(fmt.Sprintf("✓ %s is now %s", msg.fermentation.Title, msg.fermentation.Status))

	case errMsg:
		m.message = errorStyle.Render("✗ " + msg.err.Error())
		if m.step == stepLoggingIn {
			m.step = stepEnteringEmail
		}
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.step {
	case stepEnteringEmail, stepEnteringPassword:
		switch key {
		case "backspace":
			if len(m.currentInput) > 0 {
				m.currentInput = m.currentInput[:len(m.currentInput)-1]
			}
		case "enter":
			if m.currentInput == "" {
				return m, nil
			}
			if m.step == stepEnteringEmail {
				m.email = m.currentInput
				m.currentInput = ""
				m.step = stepEnteringPassword
				return m, nil
			}
			password := m.currentInput
			m.currentInput = ""
			m.step = stepLoggingIn
			m.message = "Logging in..."
			return m, login(m.api, m.email, password)
		default:
			if msg.Type == tea.KeyRunes {
				m.currentInput += string(msg.Runes)
			}
		}

	case stepListing:
		switch key {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.fermentations)-1 {
				m.cursor++
			}
		case "r":
			return m, loadFermentations(m.api)
		case "enter":
			if f := m.selected(); f != nil {
				m.step = stepDetail
				m.snapshot = nil
				m.message = ""
				return m, loadSnapshot(m.api, f.ID)
			}
		}

	case stepDetail:
		f := m.selected()
		if f == nil {
			m.step = stepListing
			return m, nil
		}
		switch key {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "esc", "backspace":
			m.step = stepListing
			m.message = ""
		case "r":
			return m, loadSnapshot(m.api, f.ID)
		case "c":
			return m, setStatus(m.api, f.ID, entities.StatusInactive)
		case "o":
			return m, setStatus(m.api, f.ID, entities.StatusActive)
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("Cacao fermentation console"))
	s.WriteString("\n")

	switch m.step {
	case stepEnteringEmail:
		if m.message != "" {
			s.WriteString(m.message + "\n\n")
		}
		s.WriteString(promptStyle.Render("Email:") + "\n")
		s.WriteString(inputStyle.Render("> " + m.currentInput))
		s.WriteString("\n\nPress Enter\n")

	case stepEnteringPassword:
		s.WriteString(promptStyle.Render("Password:") + "\n")
		s.WriteString(inputStyle.Render("> " + strings.Repeat("•", len(m.currentInput))))
		s.WriteString("\n\nPress Enter\n")

	case stepLoggingIn:
		s.WriteString(m.message + "\n")

	case stepListing:
		if m.message != "" {
			s.WriteString(m.message + "\n\n")
		}
		if len(m.fermentations) == 0 {
			s.WriteString(mutedStyle.Render("No fermentations yet.") + "\n")
		}
		for i, f := range m.fermentations {
			line := fmt.Sprintf("%-9s %-8s %-8s %-14s %8.2f", f.Title, f.Type, f.Status, f.DeviceSerial, f.TotalQuantity)
			if m.cursor == i {
				s.WriteString(selectedStyle.Render("> "+line) + "\n")
			} else {
				s.WriteString(normalStyle.Render(line) + "\n")
			}
		}
		s.WriteString(mutedStyle.Render("\n↑/↓ move, Enter open, r refresh, q quit") + "\n")

	case stepDetail:
		s.WriteString(m.detailView())
	}
	return s.String()
}

func (m model) detailView() string {
	f := m.selected()
	if f == nil {
		return ""
	}
	var s strings.Builder
	s.WriteString(promptStyle.Render(fmt.Sprintf("%s (%s, %s)", f.Title, f.Type, f.Status)) + "\n")
	s.WriteString(fmt.Sprintf("Device %s, started %s", f.DeviceSerial, f.StartTime.Local().Format("2006-01-02 15:04")))
	if f.EndTime != nil {
		s.WriteString(fmt.Sprintf(", ended %s", f.EndTime.Local().Format("2006-01-02 15:04")))
	}
	s.WriteString("\n\n")

	if m.snapshot == nil {
		s.WriteString(mutedStyle.Render("No measurements yet.") + "\n")
	} else {
		s.WriteString(fmt.Sprintf("Latest reading at %s\n", m.snapshot.Date.Local().Format("2006-01-02 15:04:05")))
		for _, kind := range entities.ReadingKinds {
			if v, ok := m.snapshot.Values[kind.Type]; ok {
				s.WriteString(fmt.Sprintf("  %-28s %10.2f %s\n", kind.SensorName, v, kind.Unit))
			}
		}
	}

	if m.message != "" {
		s.WriteString("\n" + m.message + "\n")
	}
	s.WriteString(mutedStyle.Render("\nr refresh, c close, o reopen, Esc back, q quit") + "\n")
	return s.String()
}

func main() {
	defaultURL := os.Getenv("CACAO_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:3536"
	}
	baseURL := flag.String("api", defaultURL, "cacao server base URL")
	flag.Parse()

	p := tea.NewProgram(initialModel(newAPIClient(*baseURL)))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
