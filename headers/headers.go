package headers

import (
	"net/http"
	"time"

	"github.com/agnosto/board-collector/config"
)

type BoardHeaders struct {
	UserAgent string
	Referer   string
}

func NewBoardHeaders(cfg *config.Config) *BoardHeaders {
	return &BoardHeaders{
		UserAgent: cfg.Board.UserAgent,
		Referer:   cfg.Board.Referer,
	}
}

func (h *BoardHeaders) GetBasicHeaders() map[string]string {
	headers := map[string]string{
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
		"User-Agent":      h.UserAgent,
	}
	if h.Referer != "" {
		headers["Referer"] = h.Referer
	}
	return headers
}

func (h *BoardHeaders) AddHeadersToRequest(req *http.Request) {
	for key, value := range h.GetBasicHeaders() {
		req.Header.Set(key, value)
	}
}

// AddConditionalHeaders marks the request "only if modified since", so the
// API answers 304 when nothing changed after that instant.
func (h *BoardHeaders) AddConditionalHeaders(req *http.Request, since time.Time) {
	h.AddHeadersToRequest(req)
	req.Header.Set("If-Modified-Since", since.UTC().Format(http.TimeFormat))
}
