package texts

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"google.golang.org/genai"
)

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello   world", "hello world"},
		{"breaks", "line one<br>line two<br><br>line three", "line one\nline two\nline three"},
		{"entities", "&gt;implying &amp; &#039;quotes&#039;", ">implying & 'quotes'"},
		{
			"quotelink",
			`<a href="#p123" class="quotelink">&gt;&gt;123</a><br><span class="quote">&gt;be me</span>`,
			">>123\n>be me",
		},
		{"wbr", "https://exa<wbr>mple.com", "https://example.com"},
		{"empty", "  <br> ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkup(tt.in); got != tt.want {
				t.Fatalf("StripMarkup(%q)=%q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWordCloud(t *testing.T) {
	tests := []struct {
		name  string
		posts []string
		n     int
		want  []WordCount
	}{
		{"counted once per post", []string{"moon moon moon", "moon lambo"}, 0,
			[]WordCount{{"moon", 2}, {"lambo", 1}}},
		{"markup and filtered words", []string{"<b>The</b> price is 100 https://www.pastebin.com<br>wagmi"}, 0,
			[]WordCount{{"com", 1}, {"price", 1}, {"wagmi", 1}}},
		{"contractions", []string{"I don't know"}, 0, []WordCount{{"know", 1}}},
		{"case folded", []string{"Bitcoin", "BITCOIN bitcoin"}, 0, []WordCount{{"bitcoin", 2}}},
		{"limit", []string{"b a c", "c b", "c"}, 2, []WordCount{{"c", 3}, {"b", 2}}},
		{"empty", nil, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WordCloud(tt.posts, tt.n)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("WordCloud(%q)=%v, want %v", tt.posts, got, tt.want)
			}
		})
	}
}

func TestWordCloud_DefaultSize(t *testing.T) {
	posts := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		posts = append(posts, "word"+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	if got := WordCloud(posts, 0); len(got) != DefaultWordCloudSize {
		t.Fatalf("len=%d, want %d", len(got), DefaultWordCloudSize)
	}
}

func TestReduce(t *testing.T) {
	weights := map[string]float64{"toxicity": 1.0, "severe_toxicity": 0.7, "obscene": 1.5}

	tests := []struct {
		name  string
		probs map[string]float64
		want  float64
	}{
		{"empty", map[string]float64{}, 0},
		{"plain max", map[string]float64{"toxicity": 0.4, "obscene": 0.9}, 0.6},
		{"amplified", map[string]float64{"toxicity": 0.1, "severe_toxicity": 0.35}, 0.5},
		{"clamped", map[string]float64{"severe_toxicity": 0.9}, 1},
		{"unknown category", map[string]float64{"spam": 0.3}, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reduce(tt.probs, weights); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Reduce=%v, want %v", got, tt.want)
			}
		})
	}
}

type countingScorer struct {
	calls int
}

func (c *countingScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	c.calls++
	return map[string]float64{"toxicity": 0.5}, nil
}

func TestLazyScorer_LoadOnce(t *testing.T) {
	var loads int32
	inner := &countingScorer{}
	l := NewLazyScorer("test", func(ctx context.Context) (Scorer, error) {
		atomic.AddInt32(&loads, 1)
		return inner, nil
	})

	if loads != 0 {
		t.Fatal("scorer loaded before first use")
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Score(context.Background(), "x"); err != nil {
			t.Fatalf("Score: %v", err)
		}
	}
	if loads != 1 {
		t.Fatalf("loads=%d, want 1", loads)
	}
	if inner.calls != 3 {
		t.Fatalf("calls=%d, want 3", inner.calls)
	}
}

func TestLazyScorer_FailOnce(t *testing.T) {
	var loads int32
	boom := errors.New("model missing")
	l := NewLazyScorer("test", func(ctx context.Context) (Scorer, error) {
		atomic.AddInt32(&loads, 1)
		return nil, boom
	})

	for i := 0; i < 3; i++ {
		_, err := l.Score(context.Background(), "x")
		var se *ScoreError
		if !errors.As(err, &se) || !errors.Is(err, boom) {
			t.Fatalf("err=%v, want ScoreError wrapping load failure", err)
		}
	}
	if loads != 1 {
		t.Fatalf("loads=%d, want 1", loads)
	}
}

func TestHTTPScorer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.Text == "down" {
			http.Error(w, "model unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]float64{"toxicity": 0.25, "insult": 0.6})
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPScorer: %v", err)
	}

	probs, err := s.Score(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if probs["insult"] != 0.6 {
		t.Fatalf("probs=%v", probs)
	}

	_, err = s.Score(context.Background(), "down")
	var se *ScoreError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v, want *ScoreError", err)
	}
}

func TestNewHTTPScorer_InvalidEndpoint(t *testing.T) {
	if _, err := NewHTTPScorer("not a url", time.Second); err == nil {
		t.Fatal("expected error")
	}
}

func TestGeminiScorer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"toxicity\":0.2,\"threat\":0.4}"}]}}]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	s, err := newGeminiScorer(ctx, &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	}, "test-model", categoryNames(nil))
	if err != nil {
		t.Fatalf("newGeminiScorer: %v", err)
	}

	probs, err := s.Score(ctx, "hello")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got := Reduce(probs, DefaultWeights()); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("score=%v, want 0.5", got)
	}
}

func TestGeminiScorer_MissingKey(t *testing.T) {
	if _, err := NewGeminiScorer(context.Background(), "", "m", nil); err == nil {
		t.Fatal("expected error without api key")
	}
}

type memoryStore struct {
	saved []models.TextEntry
}

func (m *memoryStore) Save(ctx context.Context, threadID int64, title, content string, toxicity float64) (*models.TextEntry, error) {
	e := models.TextEntry{ID: uint(len(m.saved) + 1), ThreadID: threadID, Title: title, Content: content, Toxicity: toxicity}
	m.saved = append(m.saved, e)
	return &e, nil
}

type scriptedScorer map[string]map[string]float64

func (s scriptedScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	probs, ok := s[text]
	if !ok {
		return nil, &ScoreError{Provider: "scripted", Err: errors.New("model unavailable")}
	}
	return probs, nil
}

func TestPipeline_Process(t *testing.T) {
	scorer := scriptedScorer{
		"Title\nbody\nline": {"toxicity": 0.3, "insult": 0.6},
		"only body":        {"toxicity": 0.1},
	}
	store := &memoryStore{}
	p := NewPipeline(scorer, store, nil)

	entries := p.Process(context.Background(), []Item{
		{ThreadID: 1, Title: "Title", Body: "body<br>line"},
		{ThreadID: 2, Title: "", Body: ""},
		{ThreadID: 3, Title: "unscored", Body: ""},
		{ThreadID: 4, Body: "only body"},
	})

	if len(entries) != 2 {
		t.Fatalf("entries=%d, want 2", len(entries))
	}
	if entries[0].ThreadID != 1 || math.Abs(entries[0].Toxicity-0.5) > 1e-9 {
		t.Fatalf("entry[0]=%+v", entries[0])
	}
	if entries[0].Content != "body\nline" {
		t.Fatalf("content=%q", entries[0].Content)
	}
	if entries[1].ThreadID != 4 || entries[1].Title != "" {
		t.Fatalf("entry[1]=%+v", entries[1])
	}
}
