package handlers

import (
	"log"
	"os"
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/cache"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/handlers/ws"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/repository"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type WebSocketHandler struct {
	messageService *service.MessageService
	groupService   *service.GroupService
	userRepo       repository.UserRepositoryInterface
	hub            *ws.Hub
	userCache      *cache.UserCache
}

func NewWebSocketHandler(hub *ws.Hub, messageService *service.MessageService, groupService *service.GroupService, userRepo repository.UserRepositoryInterface, userCache *cache.UserCache) *WebSocketHandler {
	return &WebSocketHandler{
		messageService: messageService,
		groupService:   groupService,
		userRepo:       userRepo,
		hub:            hub,
		userCache:      userCache,
	}
}

// GetHub returns the hub instance (useful for sending messages from other handlers)
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

// OnlineUsers reports the currently connected user ids. The Redis presence
// set covers every instance; the local hub is the fallback when Redis is
// down or empty.
func (h *WebSocketHandler) OnlineUsers(c *fiber.Ctx) error {
	if ids, err := h.userCache.GetOnlineUsers(); err == nil && len(ids) > 0 {
		return c.JSON(fiber.Map{"online": ids, "count": len(ids)})
	}
	ids := h.hub.GetOnlineUsers()
	return c.JSON(fiber.Map{"online": ids, "count": len(ids)})
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID := c.Locals("userID").(uint)
	wsDebug := os.Getenv("WS_DEBUG") == "true"

	// Check if client supports gzip compression (via query param or header)
	supportsGzip := c.Query("gzip") == "1" || c.Headers("X-Supports-Gzip") == "1"

	c.SetPongHandler(func(appData string) error {
		h.hub.MarkPong(userID)
		c.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})
	c.SetReadDeadline(time.Now().Add(90 * time.Second))

	// Register client in hub; a previous connection for this user is
	// superseded and closed. All writes from here on go through the wrapper
	// so they are serialized with the hub's background senders.
	client := h.hub.Register(userID, c, supportsGzip)

	// Update user status to online
	go func() {
		if h.userCache != nil {
			if err := h.userCache.SetUserOnline(userID); err != nil {
				log.Printf("Failed to set user %d online in cache: %v", userID, err)
			}
		}
		if err := h.userRepo.UpdateOnlineStatus(userID, true); err != nil {
			log.Printf("Failed to set user %d online in DB: %v", userID, err)
		}
	}()

	// Flush pending messages after successful connection
	go func() {
		if err := h.hub.FlushPendingMessages(userID); err != nil {
			log.Printf("Failed to flush pending messages for user %d: %v", userID, err)
		}
	}()

	defer func() {
		h.hub.UnregisterConn(userID, c)
		// Update user status to offline only if no superseding connection
		if !h.hub.IsOnline(userID) {
			go func() {
				if h.userCache != nil {
					if err := h.userCache.SetUserOffline(userID); err != nil {
						log.Printf("Failed to set user %d offline in cache: %v", userID, err)
					}
				}
				if err := h.userRepo.UpdateOnlineStatus(userID, false); err != nil {
					log.Printf("Failed to set user %d offline in DB: %v", userID, err)
				}
			}()
		}
	}()

	log.Printf("User %d connected via WebSocket", userID)

	// Create message context
	ctx := &ws.MessageContext{
		UserID:         userID,
		Conn:           client,
		Hub:            h.hub,
		MessageService: h.messageService,
		GroupService:   h.groupService,
	}

	// Handle incoming events
	for {
		messageType, messageBytes, err := c.ReadMessage()
		if err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		if wsDebug {
			log.Printf("ws_recv user_id=%d frame_type=%d size=%d", userID, messageType, len(messageBytes))
		}

		// Decompress if binary message (gzip compressed)
		if messageType == websocket.BinaryMessage {
			decompressed, err := ws.DecompressMessage(messageBytes)
			if err != nil {
				log.Printf("Error decompressing message from user %d: %v", userID, err)
				ws.SendError(client, "decompression_failed", "Failed to decompress message", err.Error())
				continue
			}
			messageBytes = decompressed
		}

		// Deserialize event
		msg, err := ws.Deserialize(messageBytes)
		if err != nil {
			log.Printf("Error deserializing message from user %d: %v", userID, err)
			ws.SendError(client, "invalid_message", "Invalid message format", err.Error())
			continue
		}

		// Process event
		if err := msg.Process(ctx); err != nil {
			log.Printf("Error processing message %s from user %d: %v", msg.GetType(), userID, err)
			ws.SendError(client, "processing_failed", "Failed to process message", err.Error())
		}
	}

	log.Printf("User %d disconnected from WebSocket", userID)
}
