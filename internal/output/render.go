package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/dustin/go-humanize"

	"github.com/basecamp/stockstatus/internal/config"
	"github.com/basecamp/stockstatus/internal/observability"
	"github.com/basecamp/stockstatus/internal/tui"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool
	now    func() time.Time

	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Success lipgloss.Style
}

// NewRenderer creates a renderer with styles from the resolved theme.
// Styling is enabled when writing to a TTY, or when forceStyled is true.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithTheme(w, forceStyled, tui.ResolveTheme(config.GlobalConfigDir()))
}

// NewRendererWithTheme creates a renderer with a specific theme (for testing).
func NewRendererWithTheme(w io.Writer, forceStyled bool, theme tui.Theme) *Renderer {
	width, isTTY := terminalInfo(w)
	styled := isTTY || forceStyled

	r := &Renderer{width: width, styled: styled, now: time.Now}

	if !styled {
		return r
	}

	// lipgloss.NewRenderer does not carry a forced profile through, so
	// set the global one. 2 is termenv.TrueColor.
	lipgloss.SetColorProfile(2)

	// Dark variants: the background cannot be detected when piped.
	r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary.Dark)).Bold(true)
	r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark))
	r.Data = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground.Dark))
	r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Error.Dark)).Bold(true)
	r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark)).Italic(true)
	r.Success = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Success.Dark)).Bold(true)
	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w >= 40 {
			width = w
		}
		fi, err := f.Stat()
		if err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			isTTY = true
		}
	}

	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.summaryStyle(resp).Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data), "")

	if resp.Notice != nil {
		b.WriteString("\n")
		style := r.Success.UnsetBold()
		if resp.Notice.Error {
			style = r.Error
		}
		b.WriteString(style.Render(resp.Notice.Message))
		b.WriteString("\n")
	}

	if stats, ok := extractStats(resp.Meta); ok {
		if parts := stats.FormatParts(); len(parts) > 0 {
			b.WriteString("\n")
			b.WriteString(r.Muted.Render("Stats: " + strings.Join(parts, " | ")))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// summaryStyle colors the summary by availability when the data carries it.
func (r *Renderer) summaryStyle(resp *Response) lipgloss.Style {
	if m, ok := NormalizeData(resp.Data).(map[string]any); ok {
		if avail, ok := m["available"].(bool); ok {
			if avail {
				return r.Success
			}
			return r.Error
		}
	}
	return r.Summary
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any, indent string) {
	switch d := data.(type) {
	case nil:
	case map[string]any:
		r.renderObject(b, d, indent)
	case []any:
		for _, item := range d {
			b.WriteString(indent + r.Data.Render("• "+formatCell(item)))
			b.WriteString("\n")
		}
	default:
		b.WriteString(indent + r.Data.Render(formatCell(d)))
		b.WriteString("\n")
	}
}

// fieldOrder puts the readout fields first; the rest follow alphabetically.
var fieldOrder = map[string]int{
	"status":     1,
	"state":      2,
	"error":      3,
	"updated_at": 4,
	"fetched_at": 5,
	"refreshing": 6,
	"id":         7,
	"available":  8,
	"record":     9,
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any, indent string) {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := priority(keys[i]), priority(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})

	if len(keys) == 0 {
		b.WriteString(indent + r.Muted.Render("(no data)"))
		b.WriteString("\n")
		return
	}

	maxLen := 0
	for _, k := range keys {
		maxLen = max(maxLen, len(formatHeader(k)))
	}

	for _, k := range keys {
		label := formatHeader(k)
		if nested, ok := data[k].(map[string]any); ok {
			b.WriteString(indent + r.Muted.Render(label+":"))
			b.WriteString("\n")
			r.renderObject(b, nested, indent+"  ")
			continue
		}
		value := r.formatValue(k, data[k])
		line := indent + r.Muted.Render(fmt.Sprintf("%-*s: ", maxLen, label)) + r.Data.Render(value)
		if r.width > 0 && lipgloss.Width(line) > r.width {
			line = lipgloss.NewStyle().MaxWidth(r.width).Render(line)
		}
		b.WriteString(line + "\n")
	}
}

func priority(k string) int {
	if p, ok := fieldOrder[k]; ok {
		return p
	}
	return 50
}

func formatHeader(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	words := strings.Fields(key)
	for i, w := range words {
		if w == "id" {
			words[i] = "ID"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatValue renders timestamps as local time plus a relative hint.
func (r *Renderer) formatValue(key string, val any) string {
	str, ok := val.(string)
	if !ok || !strings.HasSuffix(key, "_at") {
		return formatCell(val)
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return formatCell(val)
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("Jan 2 3:04:05 PM"), humanize.RelTime(t, r.now(), "ago", "from now"))
}

// extractStats pulls session stats from response meta if present.
func extractStats(meta map[string]any) (observability.SessionMetrics, bool) {
	if meta == nil {
		return observability.SessionMetrics{}, false
	}
	stats, ok := meta["stats"].(observability.SessionMetrics)
	return stats, ok
}
