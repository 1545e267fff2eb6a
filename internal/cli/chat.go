package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zygotrix/zigi-go/internal/models"
	"github.com/zygotrix/zigi-go/internal/render"
	"github.com/zygotrix/zigi-go/internal/session"
)

var chatConversation string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat view",
	Long: `Open the interactive chat view.

Responses stream in as they are generated. Key bindings:
  enter    send the message
  ctrl+n   start a new conversation
  ctrl+l   clear the transcript
  ctrl+r   regenerate the last response
  ctrl+c   quit

Examples:
  zigi chat
  zigi chat --conversation 6f1c9d2e`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "resume an existing conversation")
}

// Theme holds the color scheme for the chat display.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
	Title     lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	User:      lipgloss.Color("#00D787"), // green
	Assistant: lipgloss.Color("#5FAFD7"), // light blue
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
	Title:     lipgloss.Color("#D7AF5F"), // amber
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

// sessionChangedMsg signals that session state changed and the view is stale.
type sessionChangedMsg struct{}

// chatModel is the bubbletea model for the chat view.
type chatModel struct {
	sess     *session.Session
	textarea textarea.Model
	spinner  spinner.Model
	theme    Theme
	width    int
	quitting bool
}

// newChatModel creates the chat view model.
func newChatModel(sess *session.Session) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask Zigi anything..."
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return chatModel{
		sess:     sess,
		textarea: ta,
		spinner:  sp,
		theme:    defaultTheme,
		width:    80,
	}
}

// Init returns the initial commands.
func (m chatModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.textarea.SetWidth(msg.Width - 2)
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "ctrl+n":
			m.sess.StartNewConversation()
			return m, nil
		case "ctrl+l":
			m.sess.ClearMessages()
			return m, nil
		case "ctrl+r":
			return m, m.regenerateLast()
		}

		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	case sessionChangedMsg:
		// State lives in the session; receiving the message is enough to
		// trigger a re-render.
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit hands the draft to the session. Suppressed and empty submissions
// leave the draft in place.
func (m chatModel) submit() (tea.Model, tea.Cmd) {
	content := m.textarea.Value()
	if err := m.sess.SendMessage(context.Background(), content, nil); err != nil {
		return m, nil
	}
	m.textarea.Reset()
	return m, nil
}

// regenerateLast re-asks the model for the most recent completed response.
func (m chatModel) regenerateLast() tea.Cmd {
	msgs := m.sess.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant && !msgs[i].Streaming {
			id := msgs[i].ID
			return func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				_ = m.sess.RegenerateMessage(ctx, id)
				return sessionChangedMsg{}
			}
		}
	}
	return nil
}

// View renders the chat display.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m chatModel) renderContent() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := m.sess.Title()
	if title == "" {
		title = "..."
	}
	b.WriteString(m.theme.titleStyle().Render(title) + "\n\n")

	if m.sess.IsLoading() {
		b.WriteString(m.spinner.View() + " Loading conversation...\n\n")
	}

	for _, msg := range m.sess.Messages() {
		b.WriteString(m.renderMessage(msg))
	}

	if err := m.sess.Err(); err != nil {
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("✗ %v", err)) + "\n\n")
	}

	b.WriteString(m.textarea.View() + "\n")
	b.WriteString(m.theme.hintStyle().Render("enter send • ctrl+n new • ctrl+r regenerate • ctrl+c quit") + "\n")
	return b.String()
}

// renderMessage renders one transcript entry.
func (m chatModel) renderMessage(msg models.Message) string {
	var label string
	switch msg.Role {
	case models.RoleUser:
		label = m.theme.userStyle().Render("You")
	case models.RoleAssistant:
		label = m.theme.assistantStyle().Render("Zigi")
	default:
		label = m.theme.hintStyle().Render(string(msg.Role))
	}

	content := msg.Content
	if msg.Streaming {
		if content == "" {
			content = m.spinner.View() + " thinking..."
		} else {
			content += " " + m.spinner.View()
		}
	}

	out := fmt.Sprintf("%s\n%s\n", label, content)
	if verbose && msg.Metadata != nil && msg.Metadata.TotalTokens > 0 {
		out += m.theme.hintStyle().Render(fmt.Sprintf("  %d tokens • %dms",
			msg.Metadata.TotalTokens, msg.Metadata.LatencyMs)) + "\n"
	}
	return out + "\n"
}

func runChat(cmd *cobra.Command, args []string) error {
	var program *tea.Program

	sess := session.New(session.Options{
		Transport: apiClient,
		Cache:     store,
		Logger:    logger,
		Metrics:   collector,
		Gate: session.GateConfig{
			DebounceWindow:  cfg.DebounceWindow,
			DuplicateWindow: cfg.DuplicateWindow,
		},
		Scheduler:    render.NewTickScheduler(cfg.FlushInterval),
		Stream:       cfg.Stream,
		Model:        cfg.Model,
		EnabledTools: cfg.EnabledTools,
		OnChange: func() {
			if program != nil {
				program.Send(sessionChangedMsg{})
			}
		},
	})

	program = tea.NewProgram(newChatModel(sess))

	if chatConversation != "" {
		sess.LoadConversation(context.Background(), chatConversation)
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}

	printSessionStats(sess)
	return nil
}

// printSessionStats prints a usage summary after the chat view closes.
func printSessionStats(sess *session.Session) {
	snap := sess.Stats()
	if snap.Exchange == nil {
		return
	}

	fmt.Printf("\n%d exchanges in %.0fs", snap.Exchange.Count, snap.UptimeSeconds)
	if snap.Exchange.TotalInputTokens != nil && snap.Exchange.TotalOutputTokens != nil {
		fmt.Printf(" • %d in / %d out tokens",
			*snap.Exchange.TotalInputTokens, *snap.Exchange.TotalOutputTokens)
	}
	fmt.Printf(" • avg %.0fms\n", snap.Exchange.AvgTimeMs)
}
