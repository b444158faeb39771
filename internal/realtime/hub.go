package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// wsConn is the slice of the websocket connection the hub writes to.
// Narrowed to an interface so session handling is testable.
type wsConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Hub tracks this instance's live websocket sessions keyed by user.
// Cross-instance delivery rides the Pub/Sub broadcast topic; the hub
// only forwards to sessions it holds locally.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[wsConn]struct{}
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[wsConn]struct{})}
}

func (h *Hub) register(userID string, conn wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[wsConn]struct{})
	}
	h.sessions[userID][conn] = struct{}{}
}

func (h *Hub) unregister(userID string, conn wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.sessions[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.sessions, userID)
		}
	}
}

// SessionCount reports the number of live sessions for a user
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Deliver writes the payload to every local session of the user. A
// session that fails the write is closed and dropped; healthy siblings
// are unaffected.
func (h *Hub) Deliver(ctx context.Context, userID string, payload []byte) {
	h.mu.RLock()
	conns := make([]wsConn, 0, len(h.sessions[userID]))
	for conn := range h.sessions[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := conn.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			log.Printf("[Realtime] Dropping dead session for user %s: %v", userID, err)
			_ = conn.Close(websocket.StatusGoingAway, "write failed")
			h.unregister(userID, conn)
		}
	}
}

// HandleWS upgrades GET /api/ws for an authenticated user and parks the
// connection until the client goes away. Expects the auth middleware to
// have set userID.
func (h *Hub) HandleWS(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // cross-origin handled by the router's CORS layer
	})
	if err != nil {
		log.Printf("[Realtime] Websocket accept failed for user %s: %v", userID, err)
		return
	}

	h.register(userID, conn)
	log.Printf("[Realtime] User %s connected (%d sessions)", userID, h.SessionCount(userID))

	// Clients never send application data; CloseRead surfaces the
	// disconnect
	readCtx := conn.CloseRead(c.Request.Context())
	<-readCtx.Done()

	h.unregister(userID, conn)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	log.Printf("[Realtime] User %s disconnected", userID)
}

// Run consumes the broadcast subscription and forwards each envelope
// to local sessions. Messages are always acked; a user with no local
// sessions here may be connected to another instance.
func (h *Hub) Run(ctx context.Context, sub *pubsub.Subscription) error {
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		defer msg.Ack()

		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Printf("[Realtime] Dropping undecodable broadcast: %v", err)
			return
		}

		payload, err := json.Marshal(env.Payload)
		if err != nil {
			log.Printf("[Realtime] Failed to re-encode payload for user %s: %v", env.UserID, err)
			return
		}
		h.Deliver(ctx, env.UserID, payload)
	})
}
