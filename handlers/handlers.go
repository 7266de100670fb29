package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gotoplanb/todo-otel/db"
	"github.com/gotoplanb/todo-otel/notify"
)

type Handler struct {
	TodoRepo    db.TodoRepositoryInterface
	Notifier    notify.NotificationService
	RateLimiter *RateLimiter
	WSHub       *WSHub
	// JWTSecret enables the bearer-auth middleware when non-empty.
	JWTSecret string
}

type WSHub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[*websocket.Conn]bool)}
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	count, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = 1
		return true
	}
	if count >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(rl.window)
		rl.mutex.Lock()
		rl.attempts = make(map[string]int)
		rl.mutex.Unlock()
	}
}

// Broadcast sends a todo lifecycle event to every WebSocket subscriber.
// Title and completed are zero-valued for deletions.
func (h *WSHub) Broadcast(event string, todoID uuid.UUID, title string, completed bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	message, err := json.Marshal(map[string]interface{}{
		"event":     event,
		"todo_id":   todoID,
		"title":     title,
		"completed": completed,
	})
	if err != nil {
		log.Printf("Failed to marshal todo event: %v", err)
		return
	}

	for conn := range h.connections {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Failed to send WebSocket message: %v", err)
			delete(h.connections, conn)
			conn.Close()
		}
	}
}

// HandleWebSocket upgrades the connection and keeps it registered with the
// hub until the client goes away.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := r.RemoteAddr
	if !h.RateLimiter.Allow(clientIP) {
		sendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Adjust for production (e.g., check specific origins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.WSHub.mutex.Lock()
	h.WSHub.connections[conn] = true
	h.WSHub.mutex.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.WSHub.mutex.Lock()
			delete(h.WSHub.connections, conn)
			h.WSHub.mutex.Unlock()
			conn.Close()
			return
		}
	}
}

func sendError(w http.ResponseWriter, msg string, code int) {
	http.Error(w, msg, code)
}

func sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
