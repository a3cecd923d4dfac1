// Package data schedules background data refreshes for TUI models.
package data

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// PollMsg is sent when a poll interval fires. Tag identifies which poller
// triggered and Gen which run of it; a message whose Gen no longer matches
// belongs to a stopped run and must be dropped.
type PollMsg struct {
	Tag string
	Gen int
}

// Poller drives a fixed-interval poll through tea.Tick. Bubble Tea has no
// way to cancel a pending tick, so Stop bumps the generation instead and
// the model discards stale ticks via Accept.
type Poller struct {
	tag      string
	interval time.Duration
	gen      int
	running  bool
}

// NewPoller creates a stopped poller.
func NewPoller(tag string, interval time.Duration) *Poller {
	return &Poller{tag: tag, interval: interval}
}

// Interval returns the poll period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Running reports whether ticks are being scheduled.
func (p *Poller) Running() bool {
	return p.running
}

// Start begins a new run and returns the first tick.
func (p *Poller) Start() tea.Cmd {
	p.gen++
	p.running = true
	return p.tick()
}

// Stop ends the current run. Ticks already in flight are rejected by Accept.
func (p *Poller) Stop() {
	p.gen++
	p.running = false
}

// Accept reports whether msg belongs to the current run.
func (p *Poller) Accept(msg PollMsg) bool {
	return p.running && msg.Tag == p.tag && msg.Gen == p.gen
}

// Schedule returns the next tick of the current run, or nil when stopped.
func (p *Poller) Schedule() tea.Cmd {
	if !p.running {
		return nil
	}
	return p.tick()
}

func (p *Poller) tick() tea.Cmd {
	tag, gen := p.tag, p.gen
	return tea.Tick(p.interval, func(time.Time) tea.Msg {
		return PollMsg{Tag: tag, Gen: gen}
	})
}
