package handlers

import (
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/httpx"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/storage"
	"github.com/gofiber/fiber/v2"
)

// MediaHandler resolves message media references to presigned object URLs.
// Upload mechanics live in the main platform backend; this subsystem only
// reads what media_url points at.
type MediaHandler struct {
	store *storage.S3Storage
}

func NewMediaHandler(store *storage.S3Storage) *MediaHandler {
	return &MediaHandler{store: store}
}

func (h *MediaHandler) GetMessageMedia(c *fiber.Ctx) error {
	if h.store == nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "storage_unavailable", "Media storage not configured")
	}

	key, err := storage.SafeJoinMediaPath("messages", c.Params("*"))
	if err != nil {
		return httpx.BadRequest(c, "invalid_media_key", "Invalid media key")
	}

	url, err := h.store.PresignedGetURL(c.Context(), key, 15*time.Minute)
	if err != nil {
		return httpx.Error(c, fiber.StatusNotFound, "media_not_found", "Media not found")
	}

	return c.JSON(fiber.Map{"url": url})
}
