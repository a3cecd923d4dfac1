package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/basecamp/stockstatus/internal/observability"
)

// Response is the success envelope for JSON output.
type Response struct {
	OK      bool           `json:"ok"`
	Data    any            `json:"data,omitempty"`
	Summary string         `json:"summary,omitempty"`
	Notice  *Notice        `json:"notice,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Notice is a transient message attached to a response, such as the
// "refreshed" confirmation after a manual refresh.
type Notice struct {
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

// ErrorResponse is the error envelope for JSON output.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code"`
	Hint  string `json:"hint,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatAuto   Format = iota // Auto-detect: TTY → Styled, non-TTY → JSON
	FormatJSON                 // JSON envelope
	FormatStyled               // ANSI styled output (forced, even when piped)
	FormatQuiet                // Data only, no envelope
)

// ParseFormat maps a config or flag value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "styled":
		return FormatStyled, nil
	case "quiet":
		return FormatQuiet, nil
	default:
		return FormatAuto, ErrUsageHint(fmt.Sprintf("unknown format %q", s), "Use one of: auto, json, styled, quiet")
	}
}

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer

	// JQ filters the JSON document before it is printed.
	// Ignored for styled output.
	JQ string

	// Compact writes one JSON document per line (for streams).
	Compact bool
}

// DefaultOptions returns options for standard output.
func DefaultOptions() Options {
	return Options{
		Format: FormatAuto,
		Writer: os.Stdout,
	}
}

// Writer handles all output formatting.
type Writer struct {
	opts Options
	jq   *gojq.Code
}

// New creates a new output writer. An invalid jq filter is a usage error.
func New(opts Options) (*Writer, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	w := &Writer{opts: opts}
	if opts.JQ != "" {
		q, err := gojq.Parse(opts.JQ)
		if err != nil {
			return nil, ErrUsageHint("invalid --jq filter: "+err.Error(), "See https://jqlang.org/manual/")
		}
		code, err := gojq.Compile(q)
		if err != nil {
			return nil, ErrUsageHint("invalid --jq filter: "+err.Error(), "See https://jqlang.org/manual/")
		}
		w.jq = code
	}
	return w, nil
}

// Options returns a copy of the writer's options.
func (w *Writer) Options() Options {
	return w.opts
}

// Streaming returns a writer that emits one compact JSON document per line,
// sharing the compiled jq filter. Styled output is unchanged.
func (w *Writer) Streaming() *Writer {
	cp := *w
	cp.opts.Compact = true
	return &cp
}

// EffectiveFormat resolves FormatAuto against the destination.
func (w *Writer) EffectiveFormat() Format {
	if w.opts.Format != FormatAuto {
		return w.opts.Format
	}
	if w.jq != nil || !isTTY(w.opts.Writer) {
		return FormatJSON
	}
	return FormatStyled
}

// OK outputs a success response.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}
	return w.write(resp)
}

// Err outputs an error response.
func (w *Writer) Err(err error) error {
	e := AsError(err)
	resp := &ErrorResponse{
		OK:    false,
		Error: e.Message,
		Code:  e.Code,
		Hint:  e.Hint,
	}
	return w.write(resp)
}

func (w *Writer) write(v any) error {
	switch w.EffectiveFormat() {
	case FormatQuiet:
		// Extract just the data field for quiet mode
		if resp, ok := v.(*Response); ok {
			return w.writeJSON(resp.Data)
		}
		return w.writeJSON(v)
	case FormatStyled:
		return w.writeStyled(v)
	default:
		return w.writeJSON(v)
	}
}

// isTTY checks if the writer is a terminal.
func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return false
		}
		return (fi.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (w *Writer) writeJSON(v any) error {
	if w.jq != nil {
		return w.writeJQ(v)
	}
	return w.encode(v)
}

func (w *Writer) encode(v any) error {
	enc := json.NewEncoder(w.opts.Writer)
	if !w.opts.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// writeJQ runs the compiled filter over the document. String results are
// printed raw so that `--jq .data.status` composes with shell pipelines.
func (w *Writer) writeJQ(v any) error {
	input := NormalizeData(v)
	iter := w.jq.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := out.(error); ok {
			if halt, ok := err.(*gojq.HaltError); ok && halt.Value() == nil {
				return nil
			}
			return ErrUsage("jq: " + err.Error())
		}
		if s, ok := out.(string); ok {
			if _, err := fmt.Fprintln(w.opts.Writer, s); err != nil {
				return err
			}
			continue
		}
		if err := w.encode(out); err != nil {
			return err
		}
	}
}

// NormalizeData converts typed structs to plain JSON values
// (map[string]any, []any, float64, ...) via a JSON round-trip.
func NormalizeData(data any) any {
	if raw, ok := data.(json.RawMessage); ok {
		var unmarshaled any
		if err := json.Unmarshal(raw, &unmarshaled); err == nil {
			return unmarshaled
		}
		return data
	}

	switch data.(type) {
	case map[string]any, []any, string, float64, bool, nil:
		return data
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return data
		}
		var unmarshaled any
		if err := json.Unmarshal(b, &unmarshaled); err != nil {
			return data
		}
		return unmarshaled
	}
}

// writeStyled outputs ANSI styled terminal output.
func (w *Writer) writeStyled(v any) error {
	r := NewRenderer(w.opts.Writer, true) // Force styled
	switch resp := v.(type) {
	case *Response:
		return r.RenderResponse(w.opts.Writer, resp)
	case *ErrorResponse:
		return r.RenderError(w.opts.Writer, resp)
	default:
		return w.encode(v)
	}
}

// ResponseOption modifies a Response.
type ResponseOption func(*Response)

// WithSummary adds a summary to the response.
func WithSummary(s string) ResponseOption {
	return func(r *Response) { r.Summary = s }
}

// WithNotice attaches a transient notice to the response.
func WithNotice(message string, isError bool) ResponseOption {
	return func(r *Response) {
		if message == "" {
			return
		}
		r.Notice = &Notice{Message: message, Error: isError}
	}
}

// WithMeta adds metadata to the response.
func WithMeta(key string, value any) ResponseOption {
	return func(r *Response) {
		if r.Meta == nil {
			r.Meta = make(map[string]any)
		}
		r.Meta[key] = value
	}
}

// WithStats attaches session statistics (from --stats) to the response.
func WithStats(m observability.SessionMetrics) ResponseOption {
	return WithMeta("stats", m)
}
