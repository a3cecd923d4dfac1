// Package chrome holds screen furniture shared by TUI views.
package chrome

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/basecamp/stockstatus/internal/tui"
)

// ToastDuration is how long a toast remains visible.
const ToastDuration = 3 * time.Second

// toastTickMsg is the internal tick for dismissing toasts.
type toastTickMsg struct {
	generation int
}

// Toast renders ephemeral notices such as "Stock status refreshed".
// Each Show bumps a generation counter so that the dismissal tick of an
// older toast cannot hide a newer one.
type Toast struct {
	styles     *tui.Styles
	width      int
	message    string
	isError    bool
	visible    bool
	generation int
}

// NewToast creates a new toast component.
func NewToast(styles *tui.Styles) Toast {
	return Toast{styles: styles}
}

// Show displays a toast message and returns the command that dismisses it.
func (t *Toast) Show(message string, isError bool) tea.Cmd {
	t.generation++
	t.message = message
	t.isError = isError
	t.visible = true
	gen := t.generation
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return toastTickMsg{generation: gen}
	})
}

// SetWidth sets the available width.
func (t *Toast) SetWidth(w int) {
	t.width = w
}

// Visible returns whether the toast is currently displayed.
func (t *Toast) Visible() bool {
	return t.visible
}

// Message returns the current message, empty when hidden.
func (t *Toast) Message() string {
	if !t.visible {
		return ""
	}
	return t.message
}

// IsError reports whether the visible toast is an error.
func (t *Toast) IsError() bool {
	return t.visible && t.isError
}

// Update handles toast tick messages.
func (t *Toast) Update(msg tea.Msg) tea.Cmd {
	if tick, ok := msg.(toastTickMsg); ok && tick.generation == t.generation {
		t.visible = false
		t.message = ""
	}
	return nil
}

// View renders the toast.
func (t Toast) View() string {
	if !t.visible || t.message == "" {
		return ""
	}

	theme := t.styles.Theme()
	fg := theme.Success
	if t.isError {
		fg = theme.Error
	}

	style := lipgloss.NewStyle().Foreground(fg)
	if t.width > 0 {
		style = style.Align(lipgloss.Center).Width(t.width)
	}
	return style.Render(t.message)
}
