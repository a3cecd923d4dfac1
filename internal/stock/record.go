// Package stock holds the stock record model and the display state machine
// driven by the poller.
package stock

import (
	"time"
)

// Status texts shown for a loaded record.
const (
	TextAvailable    = "Available"
	TextNotAvailable = "Not Available"
	TextInvalidDate  = "Invalid Date"
)

// Record is the single row read from the stock table.
type Record struct {
	ID        string `json:"id"`
	Available int    `json:"available"`
	UpdatedAt string `json:"updated_at"`
}

// IsAvailable reports whether r marks the item as in stock.
// A nil record is never available.
func (r *Record) IsAvailable() bool {
	return r != nil && r.Available == 1
}

// StatusText returns the availability label for r.
func (r *Record) StatusText() string {
	if r.IsAvailable() {
		return TextAvailable
	}
	return TextNotAvailable
}

// UpdatedTime parses UpdatedAt. The store may return RFC 3339 with or
// without a zone, and with fractional seconds.
func (r *Record) UpdatedTime() (time.Time, bool) {
	if r == nil || r.UpdatedAt == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, r.UpdatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

// FormatUpdated renders UpdatedAt as a wall-clock time in loc.
// Missing or unparsable timestamps render as "Invalid Date".
func (r *Record) FormatUpdated(loc *time.Location) string {
	t, ok := r.UpdatedTime()
	if !ok {
		return TextInvalidDate
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("3:04:05 PM")
}
