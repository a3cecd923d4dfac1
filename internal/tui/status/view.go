package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/basecamp/stockstatus/internal/stock"
)

const (
	loadingText    = "Loading stock data..."
	errorTitle     = "Error"
	tryAgainText   = "Try Again"
	refreshText    = "Refresh Now"
	refreshingText = "Refreshing..."
)

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch st := m.tracker.State().(type) {
	case stock.Failed:
		body = m.viewError(st)
	case stock.Loaded:
		body = m.viewLoaded(st)
	default:
		body = m.spinner.View() + " " + m.styles.Muted.Render(loadingText)
	}

	parts := []string{body}
	if t := m.toast.View(); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m *Model) viewError(st stock.Failed) string {
	lines := []string{
		m.styles.Error.Bold(true).Render(errorTitle),
		m.styles.Body.Render(st.Message),
		"",
		m.button(tryAgainText),
	}
	return m.card(lines)
}

func (m *Model) viewLoaded(st stock.Loaded) string {
	rec := st.Record
	lines := []string{
		m.styles.Title.Render("Stock Status"),
		m.styles.RenderAvailability(rec.IsAvailable(), rec.StatusText()),
		"",
		m.styles.RenderKeyValue("Last updated", rec.FormatUpdated(m.loc)),
		m.styles.RenderKeyValue("Auto-refresh", m.poller.Interval().String()),
		"",
		m.action(refreshText),
	}
	return m.card(lines)
}

// action renders the refresh button, swapped for a progress label while a
// manual refresh is running.
func (m *Model) action(label string) string {
	if m.tracker.Refreshing() {
		return m.spinner.View() + " " + m.styles.Muted.Render(refreshingText)
	}
	return m.button(label)
}

func (m *Model) button(label string) string {
	return m.styles.Bold.Render(fmt.Sprintf("[%s] %s", m.keys.Refresh.Help().Key, label))
}

func (m *Model) card(lines []string) string {
	style := m.styles.Card
	if m.width > 4 {
		style = style.MaxWidth(m.width)
	}
	return style.Render(strings.Join(lines, "\n"))
}
