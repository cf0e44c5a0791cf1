package cache

import (
	"fmt"
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/repository"
	"github.com/vmihailenco/msgpack/v5"
)

// TTL constants for different cache types
const (
	ConversationTTL = 5 * time.Minute
	InboxTTL        = 2 * time.Minute
)

// MessageCache handles conversation and inbox caching
type MessageCache struct {
	redis *RedisCache
}

// NewMessageCache creates a new message cache
func NewMessageCache(redis *RedisCache) *MessageCache {
	return &MessageCache{redis: redis}
}

// conversationKey generates a cache key for a conversation
func conversationKey(userID1, userID2 uint) string {
	// Always use smaller ID first for consistency
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}
	return fmt.Sprintf("conv:%d:%d", userID1, userID2)
}

func groupConversationKey(groupID uint) string {
	return fmt.Sprintf("group:%d", groupID)
}

func inboxKey(userID uint) string {
	return fmt.Sprintf("inbox:%d", userID)
}

// GetConversation retrieves cached conversation messages
func (mc *MessageCache) GetConversation(userID1, userID2 uint) ([]models.Message, bool) {
	if mc == nil || mc.redis == nil {
		return nil, false
	}
	data, err := mc.redis.Get(conversationKey(userID1, userID2))
	if err != nil || data == nil {
		return nil, false
	}

	var messages []models.Message
	if err := msgpack.Unmarshal(data, &messages); err != nil {
		return nil, false
	}
	return messages, true
}

// SetConversation caches conversation messages
func (mc *MessageCache) SetConversation(userID1, userID2 uint, messages []models.Message) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(messages)
	if err != nil {
		return err
	}
	return mc.redis.Set(conversationKey(userID1, userID2), data, ConversationTTL)
}

// InvalidateConversation removes a conversation from cache
func (mc *MessageCache) InvalidateConversation(userID1, userID2 uint) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	return mc.redis.Delete(conversationKey(userID1, userID2))
}

// InvalidateGroupConversation removes a group conversation from cache
func (mc *MessageCache) InvalidateGroupConversation(groupID uint) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	return mc.redis.Delete(groupConversationKey(groupID))
}

// GetInbox retrieves a cached inbox listing
func (mc *MessageCache) GetInbox(userID uint) ([]repository.InboxRow, bool) {
	if mc == nil || mc.redis == nil {
		return nil, false
	}
	data, err := mc.redis.Get(inboxKey(userID))
	if err != nil || data == nil {
		return nil, false
	}

	var rows []repository.InboxRow
	if err := msgpack.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

// SetInbox caches an inbox listing
func (mc *MessageCache) SetInbox(userID uint, rows []repository.InboxRow) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(rows)
	if err != nil {
		return err
	}
	return mc.redis.Set(inboxKey(userID), data, InboxTTL)
}

// InvalidateInbox removes a user's inbox listing from cache
func (mc *MessageCache) InvalidateInbox(userID uint) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	return mc.redis.Delete(inboxKey(userID))
}
