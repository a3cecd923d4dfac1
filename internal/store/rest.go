package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/basecamp/stockstatus/internal/stock"
)

const (
	restPath       = "/rest/v1/"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// REST reads the stock table through a PostgREST endpoint, as exposed by
// Supabase projects.
type REST struct {
	httpClient *http.Client
	endpoint   string
	key        string
	table      string
	userAgent  string
}

// NewREST creates a PostgREST backend.
func NewREST(cfg Config) (*REST, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, &Error{
			Code:    CodeConfig,
			Message: "store URL not configured",
			Hint:    "Set STOCKSTATUS_STORE_URL or store_url in config",
		}
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, ErrConfig(fmt.Sprintf("invalid store URL %q", cfg.URL))
	}

	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("limit", "1")
	endpoint := base.String() + restPath + url.PathEscape(table) + "?" + q.Encode()

	return &REST{
		httpClient: client,
		endpoint:   endpoint,
		key:        cfg.Key,
		table:      table,
		userAgent:  cfg.UserAgent,
	}, nil
}

// Describe implements Store.
func (r *REST) Describe() FetchInfo {
	return FetchInfo{Backend: BackendREST, Table: r.table, Target: r.endpoint}
}

// Close implements Store.
func (r *REST) Close() {
	r.httpClient.CloseIdleConnections()
}

// FetchLatest requests at most one row. An empty array is not an error.
func (r *REST) FetchLatest(ctx context.Context) (*stock.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.key != "" {
		req.Header.Set("apikey", r.key)
		req.Header.Set("Authorization", "Bearer "+r.key)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeRESTError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrNetwork(err)
	}

	var rows []wireRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &Error{Code: CodeStore, Message: "unexpected response from store", Detail: err.Error(), Cause: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].record()
	return &rec, nil
}

// restError is the PostgREST error body.
type restError struct {
	Message string  `json:"message"`
	Code    string  `json:"code"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
	// Supabase gateway errors use error/error_description instead.
	Err         string `json:"error"`
	Description string `json:"error_description"`
}

func decodeRESTError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var re restError
	if err := json.Unmarshal(body, &re); err != nil {
		return ErrStatus(resp.StatusCode, strings.TrimSpace(string(body)), "", "")
	}

	msg := re.Message
	if msg == "" {
		msg = re.Description
	}
	if msg == "" {
		msg = re.Err
	}

	var detail []string
	if re.Code != "" {
		detail = append(detail, re.Code)
	}
	if re.Details != nil && *re.Details != "" {
		detail = append(detail, *re.Details)
	}
	hint := ""
	if re.Hint != nil {
		hint = *re.Hint
	}
	return ErrStatus(resp.StatusCode, msg, strings.Join(detail, ": "), hint)
}

// wireRecord tolerates the column types a hand-made stock table tends to
// have: numeric or text ids, and integer or boolean availability.
type wireRecord struct {
	ID        json.RawMessage `json:"id"`
	Available json.RawMessage `json:"available"`
	UpdatedAt *string         `json:"updated_at"`
}

func (w wireRecord) record() stock.Record {
	rec := stock.Record{
		ID:        rawString(w.ID),
		Available: rawFlag(w.Available),
	}
	if w.UpdatedAt != nil {
		rec.UpdatedAt = *w.UpdatedAt
	}
	return rec
}

func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func rawFlag(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "true":
		return 1
	case "", "null", "false":
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		// numeric and float columns come back as 1.0
		if f, err := n.Float64(); err == nil && f == 1 {
			return 1
		}
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i
		}
	}
	return 0
}
