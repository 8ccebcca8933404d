package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/threads"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.CreateDefaultConfig()
	cfg.Board.APIBase = srv.URL
	cfg.Board.MediaBase = srv.URL
	cfg.Board.RequestsPerSecond = 1000
	cfg.Board.Burst = 10

	c := NewClient(cfg)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchPages_SendsConditionalHeader(t *testing.T) {
	var gotSince, gotUA, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.Header.Get("If-Modified-Since")
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		w.Write([]byte(`[{"page":1,"threads":[{"no":1,"replies":5}]}]`))
	})

	pages, modified, err := c.FetchPages(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("FetchPages: %v", err)
	}
	if !modified {
		t.Fatal("modified=false, want true")
	}
	if len(pages) != 1 || len(pages[0].Threads) != 1 || pages[0].Threads[0].Replies != 5 {
		t.Fatalf("pages=%+v", pages)
	}
	if gotPath != "/biz/threads.json" {
		t.Fatalf("path=%q", gotPath)
	}
	if want := "Wed, 01 May 2024 11:59:00 GMT"; gotSince != want {
		t.Fatalf("If-Modified-Since=%q, want %q", gotSince, want)
	}
	if gotUA == "" {
		t.Fatal("User-Agent not set")
	}
}

func TestFetchPages_NotModified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})

	pages, modified, err := c.FetchPages(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("FetchPages: %v", err)
	}
	if modified || pages != nil {
		t.Fatalf("got pages=%v modified=%v, want nil,false", pages, modified)
	}

	d := threads.ComputeDelta(threads.Snapshot{1: {No: 1, Replies: 3}}, threads.Snapshot{1: {No: 1, Replies: 3}})
	if d.NewPosts() != 0 {
		t.Fatalf("NewPosts=%d, want 0", d.NewPosts())
	}
}

func TestFetchPages_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, _, err := c.FetchPages(context.Background(), time.Minute)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err=%v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode=%d, want 500", fe.StatusCode)
	}
	if fe.URL == "" {
		t.Fatal("URL missing from FetchError")
	}
}

func TestFetchPages_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := config.CreateDefaultConfig()
	cfg.Board.APIBase = srv.URL
	srv.Close()

	_, _, err := NewClient(cfg).FetchPages(context.Background(), time.Minute)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err=%v, want *FetchError", err)
	}
	if fe.StatusCode != 0 || fe.Err == nil {
		t.Fatalf("got %+v, want status 0 with cause", fe)
	}
}

func TestFetchThreadDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/biz/thread/42.json" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("If-Modified-Since") != "" {
			t.Errorf("detail request carried If-Modified-Since")
		}
		w.Write([]byte(`{"posts":[{"no":42,"sub":"title","com":"body","tim":1700000000001,"ext":".jpg"},{"no":43}]}`))
	})

	op, err := c.FetchThreadDetails(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchThreadDetails: %v", err)
	}
	if op.No != 42 || op.Sub != "title" {
		t.Fatalf("op=%+v", op)
	}

	m := op.Media()
	if m == nil {
		t.Fatal("media missing")
	}
	if got, want := c.ImageURL(*m), c.mediaBase+"/biz/1700000000001.jpg"; got != want {
		t.Fatalf("ImageURL=%q, want %q", got, want)
	}

	_, err = c.FetchThreadDetails(context.Background(), 7)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("err=%v, want 404 FetchError", err)
	}
}
