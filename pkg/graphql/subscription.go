package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// WebSocket message types for graphql-transport-ws (modern) and
// subscriptions-transport-ws (legacy).
const (
	// Common message types (used by both protocols)
	msgTypeConnectionInit = "connection_init"
	msgTypeConnectionAck  = "connection_ack"

	// graphql-transport-ws protocol (modern)
	msgTypePing      = "ping"
	msgTypePong      = "pong"
	msgTypeSubscribe = "subscribe"
	msgTypeNext      = "next"
	msgTypeError     = "error"
	msgTypeComplete  = "complete"

	// subscriptions-transport-ws protocol (legacy) - additional types
	msgTypeConnectionKeepAlive = "ka"
	msgTypeStart               = "start"
	msgTypeData                = "data"
	msgTypeStop                = "stop"
	msgTypeConnectionTerminate = "connection_terminate"
)

// wsMessage represents a WebSocket message for GraphQL subscriptions.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscriptionHandler handles GraphQL subscriptions over WebSocket.
type SubscriptionHandler struct {
	executor *Executor
	log      *slog.Logger
	upgrader websocket.AcceptOptions
	conns    map[string]*subscriptionConn
	mu       sync.RWMutex
	connID   atomic.Uint64
}

// subscriptionConn represents an active WebSocket connection.
type subscriptionConn struct {
	id       string
	conn     *websocket.Conn
	subs     map[string]context.CancelFunc
	protocol string // "graphql-ws" or "graphql-transport-ws"
	mu       sync.Mutex
}

// NewSubscriptionHandler creates a subscription handler dispatching to the
// executor's registered subscription resolvers.
func NewSubscriptionHandler(executor *Executor, log *slog.Logger) *SubscriptionHandler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SubscriptionHandler{
		executor: executor,
		log:      log,
		upgrader: websocket.AcceptOptions{
			Subprotocols:       []string{"graphql-transport-ws", "graphql-ws"},
			InsecureSkipVerify: true, // same-host browser clients and CLI tools
		},
		conns: make(map[string]*subscriptionConn),
	}
}

// ServeHTTP upgrades HTTP to WebSocket and handles subscriptions.
func (h *SubscriptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &h.upgrader)
	if err != nil {
		http.Error(w, "WebSocket upgrade failed", http.StatusBadRequest)
		return
	}

	h.handleConnection(conn, r)
}

// handleConnection handles a WebSocket connection.
func (h *SubscriptionHandler) handleConnection(conn *websocket.Conn, r *http.Request) {
	id := fmt.Sprintf("conn-%d", h.connID.Add(1))

	protocol := conn.Subprotocol()
	if protocol == "" {
		protocol = "graphql-transport-ws"
	}

	sc := &subscriptionConn{
		id:       id,
		conn:     conn,
		subs:     make(map[string]context.CancelFunc),
		protocol: protocol,
	}

	h.mu.Lock()
	h.conns[id] = sc
	h.mu.Unlock()

	h.log.Debug("subscription connection opened", "conn", id, "protocol", protocol)

	defer func() {
		sc.mu.Lock()
		for _, cancel := range sc.subs {
			cancel()
		}
		sc.mu.Unlock()

		h.mu.Lock()
		delete(h.conns, id)
		h.mu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
		h.log.Debug("subscription connection closed", "conn", id)
	}()

	ctx := r.Context()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return // Connection closed or error
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(sc, "", "invalid message format")
			continue
		}

		h.handleMessage(ctx, sc, &msg)
	}
}

// handleMessage handles a single WebSocket message.
func (h *SubscriptionHandler) handleMessage(ctx context.Context, sc *subscriptionConn, msg *wsMessage) {
	switch msg.Type {
	case msgTypeConnectionInit:
		h.handleConnectionInit(sc)

	case msgTypePing:
		h.handlePing(sc, msg)

	case msgTypeSubscribe, msgTypeStart:
		h.handleSubscribe(ctx, sc, msg.ID, msg.Payload)

	case msgTypeComplete, msgTypeStop:
		h.handleUnsubscribe(sc, msg.ID)

	case msgTypeConnectionTerminate:
		h.handleConnectionTerminate(sc)

	case msgTypePong:
		// Ignore pong messages
	}
}

// handleConnectionInit handles connection_init message.
func (h *SubscriptionHandler) handleConnectionInit(sc *subscriptionConn) {
	ack := wsMessage{Type: msgTypeConnectionAck}
	_ = h.sendMessage(sc, &ack)

	// For legacy protocol, also send keep-alive
	if sc.protocol == "graphql-ws" {
		ka := wsMessage{Type: msgTypeConnectionKeepAlive}
		_ = h.sendMessage(sc, &ka)
	}
}

// handlePing handles ping message (modern protocol).
func (h *SubscriptionHandler) handlePing(sc *subscriptionConn, msg *wsMessage) {
	pong := wsMessage{
		Type:    msgTypePong,
		Payload: msg.Payload, // Echo back any payload
	}
	_ = h.sendMessage(sc, &pong)
}

// handleSubscribe handles a subscription request.
func (h *SubscriptionHandler) handleSubscribe(ctx context.Context, sc *subscriptionConn, id string, payload json.RawMessage) {
	if id == "" {
		h.sendError(sc, "", "subscription id is required")
		return
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(sc, id, "invalid subscription payload")
		return
	}

	subCtx, cancel := context.WithCancel(ctx)

	sub, err := h.executor.Subscribe(subCtx, &req)
	if err != nil {
		cancel()
		h.sendError(sc, id, err.Error())
		return
	}

	sc.mu.Lock()
	if _, exists := sc.subs[id]; exists {
		sc.mu.Unlock()
		cancel()
		h.sendError(sc, id, "subscription already exists")
		return
	}
	sc.subs[id] = cancel
	sc.mu.Unlock()

	go h.streamEvents(subCtx, sc, id, sub)
}

// handleUnsubscribe handles an unsubscribe request.
func (h *SubscriptionHandler) handleUnsubscribe(sc *subscriptionConn, id string) {
	sc.mu.Lock()
	cancel, exists := sc.subs[id]
	if exists {
		delete(sc.subs, id)
	}
	sc.mu.Unlock()

	if exists && cancel != nil {
		cancel()
	}
}

// handleConnectionTerminate handles connection_terminate message (legacy protocol).
func (h *SubscriptionHandler) handleConnectionTerminate(sc *subscriptionConn) {
	sc.mu.Lock()
	for _, cancel := range sc.subs {
		cancel()
	}
	sc.subs = make(map[string]context.CancelFunc)
	sc.mu.Unlock()

	_ = sc.conn.Close(websocket.StatusNormalClosure, "connection terminated")
}

// streamEvents forwards resolver events to the client until the subscription
// ends.
func (h *SubscriptionHandler) streamEvents(ctx context.Context, sc *subscriptionConn, id string, sub *Subscription) {
	defer func() {
		h.sendComplete(sc, id)

		sc.mu.Lock()
		delete(sc.subs, id)
		sc.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			h.sendNext(sc, id, sub.Project(ctx, event))
		}
	}
}

// sendMessage sends a WebSocket message.
func (h *SubscriptionHandler) sendMessage(sc *subscriptionConn, msg *wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sc.conn.Write(ctx, websocket.MessageText, data)
}

// sendNext sends a next (modern) or data (legacy) message carrying one
// execution result.
func (h *SubscriptionHandler) sendNext(sc *subscriptionConn, id string, resp *Response) {
	msgType := msgTypeNext
	if sc.protocol == "graphql-ws" {
		msgType = msgTypeData
	}

	payloadBytes, _ := json.Marshal(resp)
	msg := wsMessage{
		ID:      id,
		Type:    msgType,
		Payload: payloadBytes,
	}
	_ = h.sendMessage(sc, &msg)
}

// sendError sends an error message.
func (h *SubscriptionHandler) sendError(sc *subscriptionConn, id string, message string) {
	// Both protocols use "error" type for error messages
	payload := []ResponseError{{Message: message}}
	payloadBytes, _ := json.Marshal(payload)

	msg := wsMessage{
		ID:      id,
		Type:    msgTypeError,
		Payload: payloadBytes,
	}
	_ = h.sendMessage(sc, &msg)
}

// sendComplete sends a complete message.
func (h *SubscriptionHandler) sendComplete(sc *subscriptionConn, id string) {
	msg := wsMessage{
		ID:   id,
		Type: msgTypeComplete,
	}
	_ = h.sendMessage(sc, &msg)
}

// ConnectionCount returns the number of active connections.
func (h *SubscriptionHandler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SubscriptionCount returns the total number of active subscriptions across all connections.
func (h *SubscriptionHandler) SubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, sc := range h.conns {
		sc.mu.Lock()
		count += len(sc.subs)
		sc.mu.Unlock()
	}
	return count
}

// CloseAll closes all active connections.
func (h *SubscriptionHandler) CloseAll(reason string) {
	h.mu.Lock()
	conns := make([]*subscriptionConn, 0, len(h.conns))
	for _, sc := range h.conns {
		conns = append(conns, sc)
	}
	h.mu.Unlock()

	for _, sc := range conns {
		sc.mu.Lock()
		for _, cancel := range sc.subs {
			cancel()
		}
		sc.mu.Unlock()
		_ = sc.conn.Close(websocket.StatusGoingAway, reason)
	}
}
