package headers

import (
	"net/http"
	"testing"
	"time"

	"github.com/agnosto/board-collector/config"
)

func TestAddHeadersToRequest_Referer(t *testing.T) {
	tests := []struct {
		name    string
		referer string
	}{
		{"unset", ""},
		{"configured", "https://boards.example.org/g/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.CreateDefaultConfig()
			cfg.Board.Referer = tt.referer

			req, _ := http.NewRequest(http.MethodGet, "http://localhost/g/threads.json", nil)
			NewBoardHeaders(cfg).AddHeadersToRequest(req)

			if got := req.Header.Get("Referer"); got != tt.referer {
				t.Fatalf("Referer=%q, want %q", got, tt.referer)
			}
			if _, ok := req.Header["Referer"]; !ok && tt.referer != "" {
				t.Fatal("Referer header missing")
			}
			if req.Header.Get("User-Agent") != cfg.Board.UserAgent {
				t.Fatalf("User-Agent=%q", req.Header.Get("User-Agent"))
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	cfg := config.CreateDefaultConfig()
	req, _ := http.NewRequest(http.MethodGet, "http://localhost/g/threads.json", nil)

	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	NewBoardHeaders(cfg).AddConditionalHeaders(req, since)

	if got := req.Header.Get("If-Modified-Since"); got != "Fri, 01 Mar 2024 11:00:00 GMT" {
		t.Fatalf("If-Modified-Since=%q", got)
	}
	if _, ok := req.Header["Referer"]; ok {
		t.Fatal("Referer sent without configuration")
	}
}
