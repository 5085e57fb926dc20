package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "contentcal/internal/log"
	"contentcal/internal/model"
)

// maxErrorBody bounds how much of a failed response is kept in StatusError.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://ops.example.com/api".
	BaseURL string
	// Token, if set, is sent as a bearer token.
	Token string
	// Timeout bounds every request. Zero means 15s.
	Timeout time.Duration
	// HTTPClient overrides the transport; mainly for tests.
	HTTPClient *http.Client
}

// Client talks JSON to the external item/notes API.
type Client struct {
	base    string
	token   string
	timeout time.Duration
	http    *http.Client
}

var _ Backend = (*Client)(nil)

// New constructs a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		}
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
		http:    hc,
	}
}

func (c *Client) ListItems(ctx context.Context, q ItemQuery) (ItemPage, error) {
	var page ItemPage
	err := c.do(ctx, http.MethodGet, "/items", q.values(), nil, &page)
	if page.Items == nil {
		page.Items = []model.ContentItem{}
	}
	return page, err
}

func (c *Client) ListCalendarItems(ctx context.Context, q ItemQuery) ([]model.ContentItem, error) {
	var resp struct {
		Items []model.ContentItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/calendar/items", q.values(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		resp.Items = []model.ContentItem{}
	}
	return resp.Items, nil
}

func (c *Client) GetItem(ctx context.Context, id string) (model.ContentItem, error) {
	var it model.ContentItem
	err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(id), nil, nil, &it)
	return it, err
}

// RescheduleItem patches the item's publish_date and/or due_date. It is the
// only item mutation the drag controller issues.
func (c *Client) RescheduleItem(ctx context.Context, id string, r Reschedule) (model.ContentItem, error) {
	if r.PublishDate == nil && r.DueDate == nil {
		return model.ContentItem{}, errors.New("reschedule: no date given")
	}
	var it model.ContentItem
	err := c.do(ctx, http.MethodPatch, "/items/"+url.PathEscape(id), nil, r, &it)
	return it, err
}

func (c *Client) TransitionItem(ctx context.Context, id string, to model.Status, reason string) (model.ContentItem, error) {
	var it model.ContentItem
	body := transitionRequest{ToStatus: to, Reason: reason}
	err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(id)+"/transition", nil, body, &it)
	return it, err
}

func (c *Client) ListNotes(ctx context.Context, q NoteQuery) ([]model.CalendarNote, error) {
	v := url.Values{}
	if q.From != "" {
		v.Set("from", q.From)
	}
	if q.To != "" {
		v.Set("to", q.To)
	}
	var resp struct {
		Notes []model.CalendarNote `json:"notes"`
	}
	if err := c.do(ctx, http.MethodGet, "/calendar/notes", v, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Notes == nil {
		resp.Notes = []model.CalendarNote{}
	}
	return resp.Notes, nil
}

func (c *Client) CreateNote(ctx context.Context, in NoteInput) (model.CalendarNote, error) {
	var n model.CalendarNote
	err := c.do(ctx, http.MethodPost, "/calendar/notes", nil, in, &n)
	return n, err
}

func (c *Client) UpdateNote(ctx context.Context, id string, p NotePatch) (model.CalendarNote, error) {
	var n model.CalendarNote
	err := c.do(ctx, http.MethodPatch, "/calendar/notes/"+url.PathEscape(id), nil, p, &n)
	return n, err
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/calendar/notes/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	var resp struct {
		Products []Product `json:"products"`
	}
	v := url.Values{"q": {query}}
	if err := c.do(ctx, http.MethodGet, "/products/search", v, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Products == nil {
		resp.Products = []Product{}
	}
	return resp.Products, nil
}

// do issues one request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if cerr := ctxErr(ctx); cerr != nil {
			return cerr
		}
		if isConnectionError(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	appLog.Debug("item api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if cerr := ctxErr(ctx); cerr != nil {
			return cerr
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ctxErr reports why ctx ended: ErrTimeout for a deadline, the wrapped
// cancellation otherwise.
func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return fmt.Errorf("item api request: %w", err)
	}
}

func isConnectionError(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
