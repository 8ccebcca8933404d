package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/db/models"
)

type webhook struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (w *webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var p map[string]any
	json.NewDecoder(r.Body).Decode(&p)
	w.mu.Lock()
	w.payloads = append(w.payloads, p)
	w.mu.Unlock()
	rw.WriteHeader(http.StatusNoContent)
}

func (w *webhook) descriptions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, p := range w.payloads {
		embeds, _ := p["embeds"].([]any)
		for _, e := range embeds {
			m, _ := e.(map[string]any)
			d, _ := m["description"].(string)
			out = append(out, d)
		}
	}
	return out
}

func newTestService(t *testing.T, hook string) (*NotificationService, *[]string) {
	t.Helper()

	cfg := config.CreateDefaultConfig()
	cfg.Options.SaveLocation = t.TempDir()
	cfg.Notifications.Enabled = true
	cfg.Notifications.SystemNotify = true
	cfg.Notifications.DiscordWebhook = hook

	var titles []string
	ns := NewNotificationService(cfg)
	ns.notify = func(title, message, icon string) error {
		titles = append(titles, title)
		return nil
	}
	return ns, &titles
}

func TestNotifyRestart(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	ns, titles := newTestService(t, srv.URL)
	ns.NotifyRestart(errors.New("connection refused"), 5*time.Second)

	if len(*titles) != 1 || (*titles)[0] != "Board Collector Restart" {
		t.Fatalf("system notifications=%v", *titles)
	}
	d := hook.descriptions()
	if len(d) != 1 || !strings.Contains(d[0], "connection refused") || !strings.Contains(d[0], "5s") {
		t.Fatalf("discord=%v", d)
	}
}

func TestNotifyRestart_Disabled(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	ns, titles := newTestService(t, srv.URL)
	ns.config.Notifications.NotifyOnRestart = false
	ns.NotifyRestart(errors.New("x"), time.Second)

	ns.config.Notifications.NotifyOnRestart = true
	ns.config.Notifications.Enabled = false
	ns.NotifyRestart(errors.New("x"), time.Second)

	if len(*titles) != 0 || len(hook.descriptions()) != 0 {
		t.Fatal("notification sent while disabled")
	}
}

func TestNotifyRepost(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	ns, _ := newTestService(t, srv.URL)
	ns.NotifyRepost(models.ImageEntry{ID: 3, Hash: strings.Repeat("01", 32), FileName: "170.jpg", TotalEncounters: 10})

	d := hook.descriptions()
	if len(d) != 1 || !strings.Contains(d[0], "170.jpg") || !strings.Contains(d[0], "10 times") {
		t.Fatalf("discord=%v", d)
	}
}

func TestDiscordErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ns, _ := newTestService(t, srv.URL)
	if err := ns.sendDiscordNotification("t", "m", colorRed, ""); err == nil {
		t.Fatal("expected error for 429")
	}
}
