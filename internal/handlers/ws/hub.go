package ws

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/repository"
	"github.com/gofiber/websocket/v2"
)

// Socket is the slice of *websocket.Conn the hub needs. Narrowed to an
// interface so presence behavior is testable without a live connection.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// ClientConnection wraps a WebSocket connection with metadata
type ClientConnection struct {
	Conn         Socket
	UserID       uint
	LastPong     time.Time
	SupportsGzip bool
	PingTicker   *time.Ticker
	CloseChan    chan struct{}

	writeMu sync.Mutex
}

// WriteMessage serializes data frames across the hub workers and the handler
// goroutine. The underlying connection supports only one concurrent writer.
func (c *ClientConnection) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

func (c *ClientConnection) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// WriteControl is safe to call concurrently with data writes.
func (c *ClientConnection) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return c.Conn.WriteControl(messageType, data, deadline)
}

func (c *ClientConnection) Close() error {
	return c.Conn.Close()
}

// Hub is the presence directory: the process-wide registry mapping each user
// to at most one live connection plus the set of peer chats the user has
// open. It is the only mutable shared in-memory state in the system and all
// access goes through its mutex.
type Hub struct {
	clients     map[uint]*ClientConnection
	activeChats map[uint]map[uint]struct{} // userID -> set of peer ids being viewed
	mux         sync.RWMutex

	pendingMessageRepo repository.PendingMessageRepositoryInterface
	maxRetries         int
	baseRetryDelay     time.Duration
	pingInterval       time.Duration
	pongTimeout        time.Duration
	maxPendingPerUser  int64
}

// NewHub creates a new Hub instance
func NewHub(pendingRepo repository.PendingMessageRepositoryInterface) *Hub {
	hub := &Hub{
		clients:            make(map[uint]*ClientConnection),
		activeChats:        make(map[uint]map[uint]struct{}),
		pendingMessageRepo: pendingRepo,
		maxRetries:         5,
		baseRetryDelay:     2 * time.Second,
		pingInterval:       30 * time.Second,
		pongTimeout:        90 * time.Second,
		maxPendingPerUser:  500,
	}

	// Start background workers
	go hub.retryWorker()
	go hub.connectionHealthChecker()

	return hub
}

// Register installs a connection for userID and returns the wrapper whose
// write methods are safe to share with the hub workers. If the user already
// has a live connection it is forcibly closed first: at most one connection
// per user.
func (h *Hub) Register(userID uint, conn Socket, supportsGzip bool) *ClientConnection {
	clientConn := &ClientConnection{
		Conn:         conn,
		UserID:       userID,
		LastPong:     time.Now(),
		SupportsGzip: supportsGzip,
		PingTicker:   time.NewTicker(h.pingInterval),
		CloseChan:    make(chan struct{}),
	}

	h.mux.Lock()
	if old, exists := h.clients[userID]; exists {
		old.PingTicker.Stop()
		close(old.CloseChan)
		_ = old.Conn.Close()
		log.Printf("User %d re-registered, superseding previous connection", userID)
	}
	h.clients[userID] = clientConn
	total := len(h.clients)
	h.mux.Unlock()

	// Start ping routine
	go h.pingRoutine(clientConn)

	log.Printf("User %d connected to hub (total: %d, gzip: %v)", userID, total, supportsGzip)
	return clientConn
}

// Unregister removes the user's connection and all active-chat entries.
func (h *Hub) Unregister(userID uint) {
	h.mux.Lock()
	if client, exists := h.clients[userID]; exists {
		client.PingTicker.Stop()
		close(client.CloseChan)
	}
	delete(h.clients, userID)
	delete(h.activeChats, userID)
	count := len(h.clients)
	h.mux.Unlock()
	log.Printf("User %d disconnected from hub (total: %d)", userID, count)
}

// UnregisterConn removes the entry only when conn is still the user's
// current connection, so a superseded read loop cannot evict its successor.
func (h *Hub) UnregisterConn(userID uint, conn Socket) {
	h.mux.Lock()
	client, exists := h.clients[userID]
	if !exists || client.Conn != conn {
		h.mux.Unlock()
		return
	}
	client.PingTicker.Stop()
	close(client.CloseChan)
	delete(h.clients, userID)
	delete(h.activeChats, userID)
	count := len(h.clients)
	h.mux.Unlock()
	log.Printf("User %d disconnected from hub (total: %d)", userID, count)
}

// IsOnline checks if a user is connected
func (h *Hub) IsOnline(userID uint) bool {
	h.mux.RLock()
	defer h.mux.RUnlock()
	_, exists := h.clients[userID]
	return exists
}

// SetActiveChat records that userID has the chat window with peerID open.
// One connection may track several open chat threads.
func (h *Hub) SetActiveChat(userID, peerID uint) {
	h.mux.Lock()
	defer h.mux.Unlock()
	if _, exists := h.clients[userID]; !exists {
		return
	}
	if h.activeChats[userID] == nil {
		h.activeChats[userID] = make(map[uint]struct{})
	}
	h.activeChats[userID][peerID] = struct{}{}
}

// ClearActiveChat records that userID closed the chat window with peerID.
func (h *Hub) ClearActiveChat(userID, peerID uint) {
	h.mux.Lock()
	defer h.mux.Unlock()
	if peers, ok := h.activeChats[userID]; ok {
		delete(peers, peerID)
		if len(peers) == 0 {
			delete(h.activeChats, userID)
		}
	}
}

// IsViewing reports whether userID currently has the chat with peerID open.
func (h *Hub) IsViewing(userID, peerID uint) bool {
	h.mux.RLock()
	defer h.mux.RUnlock()
	if _, exists := h.clients[userID]; !exists {
		return false
	}
	_, viewing := h.activeChats[userID][peerID]
	return viewing
}

// MarkPong records pong receipt for connection health tracking.
func (h *Hub) MarkPong(userID uint) {
	h.mux.Lock()
	if client, exists := h.clients[userID]; exists {
		client.LastPong = time.Now()
	}
	h.mux.Unlock()
}

// SendToUser sends data to a specific user with optional compression
func (h *Hub) SendToUser(userID uint, data interface{}) error {
	return h.SendToUserWithID(userID, 0, data)
}

// SendToUserWithID sends data with explicit message ID for queueing
func (h *Hub) SendToUserWithID(userID uint, messageID uint, data interface{}) error {
	h.mux.RLock()
	clientConn, exists := h.clients[userID]
	h.mux.RUnlock()

	if !exists {
		// User offline, queue message for later delivery
		return h.queueMessage(userID, messageID, data, 0)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling data for user %d: %v", userID, err)
		return err
	}

	// Compress if supported and beneficial (> 512 bytes)
	var finalData []byte
	frameType := websocket.TextMessage
	if clientConn.SupportsGzip && len(jsonData) > 512 {
		compressed, err := compressData(jsonData)
		if err == nil && len(compressed) < len(jsonData) {
			finalData = compressed
			frameType = websocket.BinaryMessage
		} else {
			finalData = jsonData
		}
	} else {
		finalData = jsonData
	}

	if err := clientConn.WriteMessage(frameType, finalData); err != nil {
		log.Printf("Error sending message to user %d: %v", userID, err)
		// Connection may be dead: treat as offline and queue
		h.UnregisterConn(userID, clientConn.Conn)
		return h.queueMessage(userID, messageID, data, 0)
	}

	return nil
}

// queueMessage stores a payload for offline or failed delivery
func (h *Hub) queueMessage(userID uint, messageID uint, data interface{}, priority int) error {
	if h.pendingMessageRepo == nil {
		return nil // No repository configured, skip queueing
	}

	// Skip if no valid message ID (ephemeral events are not queued)
	if messageID == 0 {
		return nil
	}

	// Cap the per-user backlog so a long-offline user can't grow the queue
	// without bound.
	if count, err := h.pendingMessageRepo.CountPendingForUser(userID); err == nil && count >= h.maxPendingPerUser {
		log.Printf("Pending queue full for user %d, dropping message %d", userID, messageID)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.pendingMessageRepo.Enqueue(userID, messageID, string(jsonData), priority)
}

// BroadcastToUsers sends data to specific users
func (h *Hub) BroadcastToUsers(userIDs []uint, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling data: %v", err)
		return
	}

	h.mux.RLock()
	defer h.mux.RUnlock()

	for _, userID := range userIDs {
		if clientConn, exists := h.clients[userID]; exists {
			if err := clientConn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
				log.Printf("Error sending to user %d: %v", userID, err)
			}
		}
	}
}

// GetOnlineUsers returns list of currently connected user IDs
func (h *Hub) GetOnlineUsers() []uint {
	h.mux.RLock()
	defer h.mux.RUnlock()

	users := make([]uint, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return len(h.clients)
}

// FlushPendingMessages sends all queued payloads to a newly connected user
func (h *Hub) FlushPendingMessages(userID uint) error {
	if h.pendingMessageRepo == nil {
		return nil
	}

	// Get connection
	h.mux.RLock()
	clientConn, exists := h.clients[userID]
	h.mux.RUnlock()

	if !exists {
		return nil // User disconnected already
	}

	// Fetch pending payloads in batches
	batchSize := 50
	pending, err := h.pendingMessageRepo.GetPendingForUser(userID, batchSize)
	if err != nil {
		log.Printf("Error fetching pending messages for user %d: %v", userID, err)
		return err
	}

	if len(pending) == 0 {
		return nil
	}

	log.Printf("Flushing %d pending messages to user %d", len(pending), userID)

	batch := make([]interface{}, 0, len(pending))
	successIDs := make([]uint, 0, len(pending))

	for _, pm := range pending {
		var data interface{}
		if err := json.Unmarshal([]byte(pm.Payload), &data); err != nil {
			log.Printf("Error unmarshaling pending message %d: %v", pm.ID, err)
			continue
		}
		batch = append(batch, data)
		successIDs = append(successIDs, pm.ID)
	}

	// Send batch envelope
	batchMessage := map[string]interface{}{
		"type":     "batch",
		"messages": batch,
		"count":    len(batch),
	}

	if err := clientConn.WriteJSON(batchMessage); err != nil {
		log.Printf("Error sending batch to user %d: %v", userID, err)
		// Connection failed, messages stay in queue
		return err
	}

	// Successfully delivered, remove from queue
	if err := h.pendingMessageRepo.DeleteBatch(successIDs); err != nil {
		log.Printf("Error deleting delivered messages: %v", err)
	}

	// If there are more messages, recursively flush (rate-limited by batch size)
	if len(pending) == batchSize {
		// Small delay to avoid overwhelming the connection
		time.Sleep(100 * time.Millisecond)
		return h.FlushPendingMessages(userID)
	}

	return nil
}

// retryWorker processes failed deliveries with exponential backoff
func (h *Hub) retryWorker() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if h.pendingMessageRepo == nil {
			continue
		}

		// Get payloads ready for retry
		retryable, err := h.pendingMessageRepo.GetRetryable(100)
		if err != nil {
			log.Printf("Error fetching retryable messages: %v", err)
			continue
		}

		for _, pm := range retryable {
			// Check if user is now online
			h.mux.RLock()
			clientConn, isOnline := h.clients[pm.UserID]
			h.mux.RUnlock()

			if !isOnline {
				// Still offline, calculate next retry with exponential backoff
				attempts := pm.Attempts + 1
				if attempts >= h.maxRetries {
					// Max retries reached, keep in queue but don't retry for a while
					nextRetry := time.Now().Add(1 * time.Hour)
					h.pendingMessageRepo.MarkAttempted(pm.ID, attempts, &nextRetry)
					continue
				}

				// Exponential backoff: 2s, 4s, 8s, 16s, 32s
				delay := h.baseRetryDelay * time.Duration(1<<uint(attempts))
				nextRetry := time.Now().Add(delay)
				h.pendingMessageRepo.MarkAttempted(pm.ID, attempts, &nextRetry)
				continue
			}

			// User is online, attempt delivery
			var data interface{}
			if err := json.Unmarshal([]byte(pm.Payload), &data); err != nil {
				log.Printf("Error unmarshaling message for retry %d: %v", pm.ID, err)
				continue
			}

			jsonData, _ := json.Marshal(data)
			if err := clientConn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
				log.Printf("Retry delivery failed for user %d: %v", pm.UserID, err)
				// Mark for next retry
				attempts := pm.Attempts + 1
				delay := h.baseRetryDelay * time.Duration(1<<uint(attempts))
				nextRetry := time.Now().Add(delay)
				h.pendingMessageRepo.MarkAttempted(pm.ID, attempts, &nextRetry)
			} else {
				// Successfully delivered, remove from queue
				log.Printf("Successfully delivered pending message %d to user %d", pm.ID, pm.UserID)
				h.pendingMessageRepo.Delete(pm.ID)
			}
		}
	}
}

// pingRoutine sends periodic ping messages to keep connection alive
func (h *Hub) pingRoutine(client *ClientConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Ping routine recovered from panic for user %d: %v", client.UserID, r)
		}
	}()

	for {
		select {
		case <-client.CloseChan:
			return
		case <-client.PingTicker.C:
			// Check if this connection is still the current one
			h.mux.RLock()
			current, exists := h.clients[client.UserID]
			h.mux.RUnlock()

			if !exists || current != client {
				return
			}

			if err := client.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("Ping failed for user %d: %v", client.UserID, err)
				h.UnregisterConn(client.UserID, client.Conn)
				return
			}
		}
	}
}

// connectionHealthChecker monitors connection health and removes dead connections
func (h *Hub) connectionHealthChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.mux.RLock()
		deadConnections := make([]uint, 0)
		now := time.Now()

		for userID, client := range h.clients {
			if now.Sub(client.LastPong) > h.pongTimeout {
				deadConnections = append(deadConnections, userID)
			}
		}
		h.mux.RUnlock()

		// Unregister dead connections
		for _, userID := range deadConnections {
			log.Printf("Removing dead connection for user %d (no pong received)", userID)
			h.Unregister(userID)
		}
	}
}

// compressData compresses data using gzip
func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	if _, err := gzipWriter.Write(data); err != nil {
		return nil, err
	}

	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecompressMessage decompresses a gzip binary frame
func DecompressMessage(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
