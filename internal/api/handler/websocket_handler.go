package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parking_checkout/internal/domain"
	"parking_checkout/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsClient struct {
	conn       *websocket.Conn
	checkoutID string
}

type wsMessage struct {
	checkoutID string
	payload    []byte
}

// WebSocketManager fans checkout notifications out to browser connections.
// A connection opened with ?checkout_id= only receives that checkout's
// events. All writes happen on the Start goroutine.
type WebSocketManager struct {
	clients    map[*websocket.Conn]*wsClient
	register   chan *wsClient
	unregister chan *websocket.Conn
	broadcast  chan wsMessage
	done       chan struct{}
	mutex      sync.RWMutex
	logger     zerolog.Logger
}

func NewWebSocketManager(logger zerolog.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]*wsClient),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan wsMessage, 256),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

// Start runs the fan-out loop until ctx is cancelled. It must be called once.
func (wsm *WebSocketManager) Start(ctx context.Context) {
	defer close(wsm.done)
	for {
		select {
		case <-ctx.Done():
			wsm.mutex.Lock()
			for conn := range wsm.clients {
				conn.Close()
				delete(wsm.clients, conn)
			}
			wsm.mutex.Unlock()
			metrics.WebSocketClients.Set(0)
			return

		case client := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[client.conn] = client
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			wsm.logger.Debug().Str("checkout_id", client.checkoutID).Int("total", total).Msg("websocket client connected")

		case conn := <-wsm.unregister:
			wsm.mutex.Lock()
			if _, ok := wsm.clients[conn]; ok {
				delete(wsm.clients, conn)
				conn.Close()
			}
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			wsm.logger.Debug().Int("total", total).Msg("websocket client disconnected")

		case msg := <-wsm.broadcast:
			wsm.mutex.Lock()
			for conn, client := range wsm.clients {
				if client.checkoutID != "" && client.checkoutID != msg.checkoutID {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					wsm.logger.Warn().Err(err).Msg("error writing to websocket client")
					conn.Close()
					delete(wsm.clients, conn)
				}
			}
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			metrics.WebSocketClients.Set(float64(total))
		}
	}
}

// add hands client to the Start loop, or reports false once it has exited.
func (wsm *WebSocketManager) add(client *wsClient) bool {
	select {
	case wsm.register <- client:
		return true
	case <-wsm.done:
		return false
	}
}

func (wsm *WebSocketManager) remove(conn *websocket.Conn) {
	select {
	case wsm.unregister <- conn:
	case <-wsm.done:
	}
}

// NotifyCheckout queues n for delivery and never blocks the caller.
func (wsm *WebSocketManager) NotifyCheckout(n domain.CheckoutNotification) {
	message, err := json.Marshal(n)
	if err != nil {
		wsm.logger.Error().Err(err).Msg("error marshaling checkout notification")
		return
	}

	select {
	case wsm.broadcast <- wsMessage{checkoutID: n.CheckoutID, payload: message}:
	default:
		wsm.logger.Warn().Str("checkout_id", n.CheckoutID).Msg("broadcast channel is full, dropping message")
	}
}

func (wsm *WebSocketManager) ClientCount() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

// GET /ws?checkout_id=
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.wsManager.logger.Warn().Err(err).Msg("failed to upgrade to websocket")
		return
	}

	if !h.wsManager.add(&wsClient{conn: conn, checkoutID: c.Query("checkout_id")}) {
		conn.Close()
		return
	}

	go func() {
		defer h.wsManager.remove(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.wsManager.logger.Warn().Err(err).Msg("websocket error")
				}
				return
			}
		}
	}()
}
