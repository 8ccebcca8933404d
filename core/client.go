package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/headers"
	"github.com/agnosto/board-collector/threads"
	"golang.org/x/time/rate"
)

// Client talks to the read-only JSON API of one board.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	headers    *headers.BoardHeaders
	apiBase    string
	mediaBase  string
	board      string
	now        func() time.Time
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		limiter:    rate.NewLimiter(rate.Limit(cfg.Board.RequestsPerSecond), cfg.Board.Burst),
		headers:    headers.NewBoardHeaders(cfg),
		apiBase:    strings.TrimRight(cfg.Board.APIBase, "/"),
		mediaBase:  strings.TrimRight(cfg.Board.MediaBase, "/"),
		board:      cfg.Board.Name,
		now:        time.Now,
	}
}

// Limiter is shared with the image downloader so both respect one budget.
func (c *Client) Limiter() *rate.Limiter {
	return c.limiter
}

func (c *Client) Board() string {
	return c.board
}

// FetchPages requests the thread listing, asking the server to answer
// 304 when nothing changed during the last since. A not-modified answer
// returns (nil, false, nil). since <= 0 makes the request unconditional.
func (c *Client) FetchPages(ctx context.Context, since time.Duration) ([]threads.Page, bool, error) {
	url := fmt.Sprintf("%s/%s/threads.json", c.apiBase, c.board)

	var ifModifiedSince time.Time
	if since > 0 {
		ifModifiedSince = c.now().Add(-since)
	}

	resp, err := c.get(ctx, url, ifModifiedSince)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &FetchError{StatusCode: resp.StatusCode, URL: url}
	}

	var pages []threads.Page
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, false, &FetchError{StatusCode: resp.StatusCode, URL: url, Err: fmt.Errorf("failed to decode thread listing: %w", err)}
	}

	return pages, true, nil
}

// FetchThreadDetails returns the opening post of a thread.
func (c *Client) FetchThreadDetails(ctx context.Context, id int64) (threads.Post, error) {
	url := fmt.Sprintf("%s/%s/thread/%d.json", c.apiBase, c.board, id)

	resp, err := c.get(ctx, url, time.Time{})
	if err != nil {
		return threads.Post{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return threads.Post{}, &FetchError{StatusCode: resp.StatusCode, URL: url}
	}

	var details threads.ThreadDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return threads.Post{}, &FetchError{StatusCode: resp.StatusCode, URL: url, Err: fmt.Errorf("failed to decode thread: %w", err)}
	}
	if len(details.Posts) == 0 {
		return threads.Post{}, &FetchError{StatusCode: resp.StatusCode, URL: url, Err: fmt.Errorf("thread %d has no posts", id)}
	}

	return details.Posts[0], nil
}

// ImageURL builds the media host URL of an attachment.
func (c *Client) ImageURL(m threads.Media) string {
	return fmt.Sprintf("%s/%s/%s", c.mediaBase, c.board, m.FileName())
}

func (c *Client) get(ctx context.Context, url string, since time.Time) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	if since.IsZero() {
		c.headers.AddHeadersToRequest(req)
	} else {
		c.headers.AddConditionalHeaders(req, since)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return resp, nil
}
