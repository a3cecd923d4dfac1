package stock

import "time"

// ViewState is the display state of the poller. It is exactly one of
// Loading, Failed or Loaded.
type ViewState interface {
	// Kind names the variant for logging and JSON output.
	Kind() string
	viewState()
}

// Loading is the initial state, before the first fetch completes.
type Loading struct{}

// Failed holds the message of the most recent failed fetch.
type Failed struct {
	Message string
}

// Loaded holds the record from the most recent successful fetch.
// Record is nil when the table had no rows.
type Loaded struct {
	Record *Record
}

func (Loading) Kind() string { return "loading" }
func (Failed) Kind() string  { return "error" }
func (Loaded) Kind() string  { return "loaded" }

func (Loading) viewState() {}
func (Failed) viewState()  {}
func (Loaded) viewState()  {}

// Snapshot is a point-in-time copy of the tracker, used for rendering.
type Snapshot struct {
	State      ViewState
	Refreshing bool
	LastFetch  time.Time
}

// Record returns the loaded record, or nil for any other state.
func (s Snapshot) Record() *Record {
	if l, ok := s.State.(Loaded); ok {
		return l.Record
	}
	return nil
}

// snapshotJSON is the wire form of a Snapshot for the output layer.
type snapshotJSON struct {
	State      string  `json:"state"`
	Status     string  `json:"status,omitempty"`
	Available  *bool   `json:"available,omitempty"`
	Record     *Record `json:"record,omitempty"`
	Error      string  `json:"error,omitempty"`
	Refreshing bool    `json:"refreshing"`
	FetchedAt  string  `json:"fetched_at,omitempty"`
}

// View flattens s into a JSON-friendly value.
func (s Snapshot) View() any {
	out := snapshotJSON{Refreshing: s.Refreshing}
	if s.State != nil {
		out.State = s.State.Kind()
	}
	switch st := s.State.(type) {
	case Failed:
		out.Error = st.Message
	case Loaded:
		avail := st.Record.IsAvailable()
		out.Available = &avail
		out.Status = st.Record.StatusText()
		out.Record = st.Record
	}
	if !s.LastFetch.IsZero() {
		out.FetchedAt = s.LastFetch.UTC().Format(time.RFC3339)
	}
	return out
}
