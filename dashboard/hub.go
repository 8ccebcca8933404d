package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/agnosto/board-collector/config"
	dbservice "github.com/agnosto/board-collector/db/service"
	"github.com/agnosto/board-collector/logger"
	"github.com/agnosto/board-collector/service"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 45 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 8
)

type RatesSource interface {
	Rates(ctx context.Context, window time.Duration) (dbservice.Rates, error)
}

// Latest is the payload of GET /latest.
type Latest struct {
	Result *service.CycleResult `json:"result"`
	Rates  *dbservice.Rates     `json:"rates,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes every cycle result to the connected websocket clients and keeps
// the last one for GET /latest.
type Hub struct {
	rates      RatesSource
	window     time.Duration
	mediaDir   string
	serveMedia bool
	listen     string
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  *service.CycleResult
	payload []byte
}

func NewHub(cfg *config.Config, rates RatesSource) *Hub {
	return &Hub{
		rates:      rates,
		window:     10 * cfg.CycleTime(),
		mediaDir:   cfg.OptimizedDir(),
		serveMedia: cfg.Dashboard.ServeMedia,
		listen:     cfg.Dashboard.Listen,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish stores result as the latest one and queues it for every client.
// A client whose queue is full is dropped instead of blocking the collector.
func (h *Hub) Publish(result service.CycleResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		logger.Logger.Printf("[ERROR] [dashboard] encode cycle %s: %v", result.ID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = &result
	h.payload = payload
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			logger.Logger.Printf("[ERROR] [dashboard] dropping slow client %s", c.conn.RemoteAddr())
			h.removeLocked(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/latest", h.handleLatest)
	if h.serveMedia {
		mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(h.mediaDir))))
	}
	return mux
}

// ListenAndServe serves the dashboard until ctx is done.
func (h *Hub) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.listen,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		h.closeAll()
	}()

	logger.Logger.Printf("[INFO] Dashboard listening on %s", h.listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Hub) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	out := Latest{Result: h.latest}
	h.mu.Unlock()

	if h.rates != nil {
		rates, err := h.rates.Rates(r.Context(), h.window)
		if err != nil {
			logger.Logger.Printf("[ERROR] [dashboard] rates: %v", err)
		} else {
			out.Rates = &rates
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger.Printf("[ERROR] [dashboard] upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.payload != nil {
		c.send <- h.payload
	}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump only watches for pongs and the close frame; clients never send data.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Logger.Printf("[ERROR] [dashboard] read: %v", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
