package service

import (
	"testing"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
)

func TestInitialDirectStatus(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*MockPresence)
		expected models.MessageStatus
	}{
		{
			name:     "Receiver offline",
			setup:    func(p *MockPresence) {},
			expected: models.StatusSent,
		},
		{
			name:     "Receiver online but elsewhere",
			setup:    func(p *MockPresence) { p.SetOnline(2) },
			expected: models.StatusDelivered,
		},
		{
			name:     "Receiver viewing the sender's chat",
			setup:    func(p *MockPresence) { p.SetViewing(2, 1) },
			expected: models.StatusRead,
		},
		{
			name:     "Receiver viewing a different chat",
			setup:    func(p *MockPresence) { p.SetViewing(2, 3) },
			expected: models.StatusDelivered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			presence := NewMockPresence()
			tt.setup(presence)
			delivery := NewDeliveryService(presence)
			if got := delivery.InitialDirectStatus(1, 2); got != tt.expected {
				t.Errorf("InitialDirectStatus = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestInitialGroupStatus(t *testing.T) {
	presence := NewMockPresence()
	presence.SetOnline(2)
	delivery := NewDeliveryService(presence)

	tests := []struct {
		name       string
		senderID   uint
		receiverID uint
		expected   models.MessageStatus
	}{
		{"Sender's own row is born read", 1, 1, models.StatusRead},
		{"Online member gets delivered", 1, 2, models.StatusDelivered},
		{"Offline member gets sent", 1, 3, models.StatusSent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := delivery.InitialGroupStatus(tt.senderID, tt.receiverID); got != tt.expected {
				t.Errorf("InitialGroupStatus(%d, %d) = %v, want %v", tt.senderID, tt.receiverID, got, tt.expected)
			}
		})
	}
}
