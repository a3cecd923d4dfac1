// Package status is the interactive stock availability view.
package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/basecamp/stockstatus/internal/stock"
	"github.com/basecamp/stockstatus/internal/tui"
	"github.com/basecamp/stockstatus/internal/tui/chrome"
	"github.com/basecamp/stockstatus/internal/tui/data"
)

const pollTag = "stock"

// fetchResultMsg carries a completed fetch back into Update.
type fetchResultMsg struct {
	result stock.Result
	manual bool
}

// Options configures a Model.
type Options struct {
	Interval time.Duration
	Styles   *tui.Styles
	Location *time.Location
	Logger   *slog.Logger
}

// Model polls a Fetcher and renders the latest record.
type Model struct {
	ctx     context.Context
	fetcher stock.Fetcher
	tracker *stock.Tracker
	poller  *data.Poller
	toast   chrome.Toast
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	styles  *tui.Styles
	loc     *time.Location
	logger  *slog.Logger
	width   int
	stopped bool
}

// New creates a model. ctx bounds every fetch the model starts.
func New(ctx context.Context, f stock.Fetcher, opts Options) *Model {
	if opts.Interval <= 0 {
		opts.Interval = stock.DefaultInterval
	}
	if opts.Styles == nil {
		opts.Styles = tui.NewStyles()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = opts.Styles.Title.UnsetMarginBottom()

	return &Model{
		ctx:     ctx,
		fetcher: f,
		tracker: stock.NewTracker(),
		poller:  data.NewPoller(pollTag, opts.Interval),
		toast:   chrome.NewToast(opts.Styles),
		spinner: s,
		help:    help.New(),
		keys:    defaultKeyMap(),
		styles:  opts.Styles,
		loc:     opts.Location,
		logger:  opts.Logger,
	}
}

// Init fetches immediately and starts the interval timer.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(false), m.poller.Start())
}

// Stop cancels the interval timer. Ticks and fetch results that arrive
// afterwards are dropped.
func (m *Model) Stop() {
	m.stopped = true
	m.poller.Stop()
}

// Snapshot returns the current tracker state.
func (m *Model) Snapshot() stock.Snapshot {
	return m.tracker.Snapshot()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.toast.SetWidth(msg.Width)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case data.PollMsg:
		if !m.poller.Accept(msg) {
			return m, nil
		}
		return m, tea.Batch(m.fetch(false), m.poller.Schedule())

	case fetchResultMsg:
		if m.stopped {
			return m, nil
		}
		if msg.result.Err != nil {
			m.logger.Debug("fetch failed", "manual", msg.manual, "error", msg.result.Err)
		}
		notice, notify := m.tracker.Complete(msg.result, msg.manual)
		if notify {
			return m, m.toast.Show(notice.Message, notice.IsError)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, m.toast.Update(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Stop()
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case key.Matches(msg, m.keys.Refresh):
		if !m.canRefresh() {
			return nil
		}
		m.tracker.BeginRefresh()
		return m.fetch(true)
	}
	return nil
}

// canRefresh mirrors the visible action: there is no button while the
// first load is pending, and the loaded card's button is disabled while a
// refresh is running. Try Again on the error card is always live.
func (m *Model) canRefresh() bool {
	if m.stopped {
		return false
	}
	switch m.tracker.State().(type) {
	case stock.Failed:
		return true
	case stock.Loaded:
		return !m.tracker.Refreshing()
	default:
		return false
	}
}

func (m *Model) fetch(manual bool) tea.Cmd {
	ctx, f := m.ctx, m.fetcher
	return func() tea.Msg {
		return fetchResultMsg{result: stock.Fetch(ctx, f), manual: manual}
	}
}
