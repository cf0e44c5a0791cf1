package service

import "github.com/Majid-s-Team/celebrate-now-chat/internal/models"

// PresenceView is the read side of the presence directory: the sole authority
// the delivery state machine consults when assigning a freshly sent message
// its initial status.
type PresenceView interface {
	IsOnline(userID uint) bool
	IsViewing(userID, peerID uint) bool
}

// DeliveryService decides what status a new message starts in, per recipient.
// Mutations of existing rows go through the rank-guarded repository updates;
// this type only covers the send-time shortcut.
type DeliveryService struct {
	presence PresenceView
}

func NewDeliveryService(presence PresenceView) *DeliveryService {
	return &DeliveryService{presence: presence}
}

// InitialDirectStatus: if the receiver already has the chat window with the
// sender open, the message is born read; if the receiver is merely connected
// it is born delivered; otherwise sent.
func (s *DeliveryService) InitialDirectStatus(senderID, receiverID uint) models.MessageStatus {
	if s.presence.IsViewing(receiverID, senderID) {
		return models.StatusRead
	}
	if s.presence.IsOnline(receiverID) {
		return models.StatusDelivered
	}
	return models.StatusSent
}

// InitialGroupStatus assigns the status for one recipient row of a group
// fan-out. The sender's own row is born read; other recipients start at
// delivered when connected, sent otherwise.
func (s *DeliveryService) InitialGroupStatus(senderID, receiverID uint) models.MessageStatus {
	if receiverID == senderID {
		return models.StatusRead
	}
	if s.presence.IsOnline(receiverID) {
		return models.StatusDelivered
	}
	return models.StatusSent
}
