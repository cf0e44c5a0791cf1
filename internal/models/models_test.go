package models

import (
	"testing"
	"time"
)

func TestStatusRankOrdering(t *testing.T) {
	if !(StatusRank(StatusSent) < StatusRank(StatusDelivered) &&
		StatusRank(StatusDelivered) < StatusRank(StatusRead)) {
		t.Error("status ranks must order sent < delivered < read")
	}
	if StatusRank("garbage") != 0 {
		t.Errorf("unknown status rank = %d, want 0", StatusRank("garbage"))
	}
}

func TestValidDirectType(t *testing.T) {
	tests := []struct {
		messageType MessageType
		valid       bool
	}{
		{TextMessage, true},
		{ImageMessage, true},
		{VideoMessage, true},
		{FileMessage, true},
		{EmojiMessage, true},
		{LinkMessage, true},
		{AudioMessage, true},
		{SystemMessage, false},
		{"telegram", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidDirectType(tt.messageType); got != tt.valid {
			t.Errorf("ValidDirectType(%q) = %v, want %v", tt.messageType, got, tt.valid)
		}
	}
}

func TestCanManageMembers(t *testing.T) {
	tests := []struct {
		role GroupRole
		can  bool
	}{
		{RoleHost, true},
		{RoleCohost, true},
		{RoleAdmin, true},
		{RoleMember, false},
		{"stranger", false},
	}
	for _, tt := range tests {
		if got := tt.role.CanManageMembers(); got != tt.can {
			t.Errorf("%q.CanManageMembers() = %v, want %v", tt.role, got, tt.can)
		}
	}
}

func TestMembershipCovers(t *testing.T) {
	joined := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	left := joined.Add(48 * time.Hour)

	closed := GroupMembership{JoinedAt: joined, LeftAt: &left}
	open := GroupMembership{JoinedAt: joined}

	tests := []struct {
		name     string
		interval *GroupMembership
		at       time.Time
		covered  bool
	}{
		{"Before join", &closed, joined.Add(-time.Minute), false},
		{"Exactly at join", &closed, joined, true},
		{"Inside", &closed, joined.Add(time.Hour), true},
		{"Exactly at leave", &closed, left, true},
		{"After leave", &closed, left.Add(time.Minute), false},
		{"Open interval far future", &open, joined.Add(365 * 24 * time.Hour), true},
		{"Open interval before join", &open, joined.Add(-time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.interval.Covers(tt.at); got != tt.covered {
				t.Errorf("Covers(%v) = %v, want %v", tt.at, got, tt.covered)
			}
		})
	}
}

func TestClubStatus(t *testing.T) {
	rows := func(statuses ...MessageStatus) []GroupMessageStatus {
		result := make([]GroupMessageStatus, 0, len(statuses))
		for i, s := range statuses {
			result = append(result, GroupMessageStatus{ReceiverID: uint(i + 2), Status: s})
		}
		return result
	}

	tests := []struct {
		name     string
		rows     []GroupMessageStatus
		expected MessageStatus
	}{
		{"All read", rows(StatusRead, StatusRead), StatusRead},
		{"One delivered holds it down", rows(StatusRead, StatusDelivered), StatusDelivered},
		{"One sent holds it down", rows(StatusRead, StatusDelivered, StatusSent), StatusSent},
		{"No recipient rows", nil, StatusRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClubStatus(tt.rows, 1); got != tt.expected {
				t.Errorf("ClubStatus = %v, want %v", got, tt.expected)
			}
		})
	}

	t.Run("Sender's own row ignored", func(t *testing.T) {
		withSender := append(rows(StatusRead), GroupMessageStatus{ReceiverID: 1, Status: StatusSent})
		if got := ClubStatus(withSender, 1); got != StatusRead {
			t.Errorf("ClubStatus = %v, want read (sender row excluded)", got)
		}
	})

	t.Run("Group of one", func(t *testing.T) {
		only := []GroupMessageStatus{{ReceiverID: 1, Status: StatusRead}}
		if got := ClubStatus(only, 1); got != StatusRead {
			t.Errorf("ClubStatus = %v, want read", got)
		}
	})
}
