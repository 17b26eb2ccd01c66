package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
)

// ErrLoginCancelled is returned when the user quits the spinner before the login resolves.
var ErrLoginCancelled = errors.New("login cancelled")

// LoginFunc runs a device login, calling onCode once the user code is issued.
type LoginFunc func(ctx context.Context, onCode func(services.DeviceCode)) (*models.User, error)

// DeviceCodeMsg carries the issued device code into the program.
type DeviceCodeMsg services.DeviceCode

type loginDoneMsg struct {
	user *models.User
	err  error
}

// LoginModel shows a spinner until the device login resolves.
type LoginModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	login   func(ctx context.Context) (*models.User, error)
	spinner spinner.Model
	code    *services.DeviceCode
	user    *models.User
	err     error
	done    bool
}

// NewLoginModel creates the model. login runs once, from Init.
func NewLoginModel(ctx context.Context, login func(ctx context.Context) (*models.User, error)) *LoginModel {
	ctx, cancel := context.WithCancel(ctx)
	s := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom()))
	return &LoginModel{ctx: ctx, cancel: cancel, login: login, spinner: s}
}

func (m *LoginModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m *LoginModel) run() tea.Msg {
	user, err := m.login(m.ctx)
	return loginDoneMsg{user: user, err: err}
}

func (m *LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DeviceCodeMsg:
		code := services.DeviceCode(msg)
		m.code = &code
		return m, nil

	case loginDoneMsg:
		m.done = true
		m.user, m.err = msg.user, msg.err
		m.cancel()
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.done = true
			m.err = ErrLoginCancelled
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *LoginModel) View() string {
	if m.done {
		switch {
		case m.err != nil:
			return styles.err.Render(fmt.Sprintf("✗ Login failed: %v", m.err)) + "\n"
		case m.user != nil:
			name := m.user.Username
			if name == "" {
				name = m.user.ID
			}
			return styles.ok.Render(fmt.Sprintf("✓ Logged in to TIDAL as %s", name)) + "\n"
		}
		return ""
	}

	var b strings.Builder
	if m.code == nil {
		fmt.Fprintf(&b, "%s Requesting a login code from TIDAL...\n", m.spinner.View())
		return b.String()
	}

	link := m.code.VerificationURIComplete
	if link == "" {
		link = m.code.VerificationURI
	}
	fmt.Fprintf(&b, "Open %s in your browser\n", Highlight(shared.BrowserURL(link)))
	fmt.Fprintf(&b, "and confirm the code %s\n\n", styles.ok.Render(m.code.UserCode))
	fmt.Fprintf(&b, "%s Waiting for approval...\n", m.spinner.View())
	b.WriteString(styles.help.Render("q to cancel") + "\n")
	return b.String()
}

// Result returns the login outcome once the program has exited.
func (m *LoginModel) Result() (*models.User, error) {
	if !m.done {
		return nil, ErrLoginCancelled
	}
	return m.user, m.err
}

// RunLogin runs a login behind the spinner and returns its result.
func RunLogin(ctx context.Context, out io.Writer, login LoginFunc, teaOpts ...tea.ProgramOption) (*models.User, error) {
	var p *tea.Program
	model := NewLoginModel(ctx, func(ctx context.Context) (*models.User, error) {
		return login(ctx, func(code services.DeviceCode) { p.Send(DeviceCodeMsg(code)) })
	})

	teaOpts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}, teaOpts...)
	p = tea.NewProgram(model, teaOpts...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("error running login UI: %w", err)
	}
	return model.Result()
}
