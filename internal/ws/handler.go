package ws

import (
	"net/http"
	"sync"
	"time"

	"matka-service/internal/service/timing"
	"matka-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Event is pushed to every connected client when a result is declared
// or undone, plus once on connect with the current game board.
type Event struct {
	Type          string              `json:"type"` // result_declared, result_undone, game_status
	Game          string              `json:"game,omitempty"`
	WinningNumber string              `json:"winningNumber,omitempty"`
	At            time.Time           `json:"at"`
	Games         []timing.GameStatus `json:"games,omitempty"`
}

// Hub fans settlement events out to websocket subscribers. It
// implements the settlement notifier so results reach clients the
// moment the declaring transaction commits.
type Hub struct {
	timing *timing.Service

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(timingSvc *timing.Service) *Hub {
	return &Hub{
		timing:  timingSvc,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) ResultDeclared(game, winningNumber string, declaredAt time.Time) {
	h.broadcast(Event{
		Type:          "result_declared",
		Game:          game,
		WinningNumber: winningNumber,
		At:            declaredAt,
	})
}

func (h *Hub) ResultUndone(game string, undoneAt time.Time) {
	h.broadcast(Event{
		Type: "result_undone",
		Game: game,
		At:   undoneAt,
	})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.outbound <- ev:
		default:
			// Slow consumer; drop the event rather than block settlement.
			logger.Log.Warn("ws client send buffer full, dropping event",
				zap.String("type", ev.Type))
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// HandleResultsWS upgrades the connection and streams settlement events.
// The endpoint is public; results are public information.
func (h *Hub) HandleResultsWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	cl := newClient(conn, h)
	h.add(cl)

	now := time.Now()
	cl.outbound <- Event{
		Type:  "game_status",
		At:    now,
		Games: h.timing.AllStatuses(now),
	}

	cl.run()
}

type client struct {
	conn      *websocket.Conn
	hub       *Hub
	outbound  chan Event
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, hub *Hub) *client {
	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		hub:       hub,
		outbound:  make(chan Event, 16),
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.hub.remove(c)
		c.conn.Close()
	}()

	// Clients only listen; reads just keep the connection health loop
	// alive and detect the close.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.outbound:
			if err := c.conn.WriteJSON(ev); err != nil {
				logger.Log.Info("WS write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
