package service

import (
	"errors"
	"sort"
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/repository"
	"gorm.io/gorm"
)

// MockPresence is a fixed presence directory for testing the delivery
// state machine without a hub.
type MockPresence struct {
	online  map[uint]bool
	viewing map[uint]uint // viewer -> peer whose chat is open
}

func NewMockPresence() *MockPresence {
	return &MockPresence{
		online:  make(map[uint]bool),
		viewing: make(map[uint]uint),
	}
}

func (p *MockPresence) SetOnline(userID uint) { p.online[userID] = true }
func (p *MockPresence) SetViewing(userID, peerID uint) {
	p.online[userID] = true
	p.viewing[userID] = peerID
}

func (p *MockPresence) IsOnline(userID uint) bool { return p.online[userID] }

func (p *MockPresence) IsViewing(userID, peerID uint) bool {
	return p.viewing[userID] == peerID && peerID != 0
}

// MockMessageRepository is an in-memory implementation of
// MessageRepositoryInterface for testing
type MockMessageRepository struct {
	messages map[uint]*models.Message
	nextID   uint
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		messages: make(map[uint]*models.Message),
		nextID:   1,
	}
}

func (m *MockMessageRepository) Create(message *models.Message) error {
	if message.ID == 0 {
		message.ID = m.nextID
		m.nextID++
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m.messages[message.ID] = message
	return nil
}

func (m *MockMessageRepository) FindByID(id uint) (*models.Message, error) {
	if msg, ok := m.messages[id]; ok {
		return msg, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockMessageRepository) FindByClientID(clientID string, senderID uint) (*models.Message, error) {
	for _, msg := range m.messages {
		if msg.ClientID == clientID && msg.SenderID == senderID {
			return msg, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockMessageRepository) FindConversation(userID1, userID2 uint, limit int) ([]models.Message, error) {
	var result []models.Message
	for _, msg := range m.messages {
		if (msg.SenderID == userID1 && msg.ReceiverID == userID2) ||
			(msg.SenderID == userID2 && msg.ReceiverID == userID1) {
			result = append(result, *msg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockMessageRepository) FindUnseenFrom(receiverID, senderID uint) ([]models.Message, error) {
	var result []models.Message
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && msg.Status != models.StatusRead {
			result = append(result, *msg)
		}
	}
	return result, nil
}

func (m *MockMessageRepository) FindUnseenForUser(receiverID uint) ([]models.Message, error) {
	var result []models.Message
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID && msg.Status != models.StatusRead {
			result = append(result, *msg)
		}
	}
	return result, nil
}

func (m *MockMessageRepository) MarkDelivered(receiverID uint, messageIDs []uint) (int64, error) {
	var changed int64
	now := time.Now()
	for _, id := range messageIDs {
		msg, ok := m.messages[id]
		if !ok || msg.ReceiverID != receiverID {
			continue
		}
		if msg.Status == models.StatusSent {
			msg.Status = models.StatusDelivered
			msg.DeliveredAt = &now
			changed++
		}
	}
	return changed, nil
}

func (m *MockMessageRepository) MarkRead(receiverID uint, messageIDs []uint) (int64, error) {
	var changed int64
	now := time.Now()
	for _, id := range messageIDs {
		msg, ok := m.messages[id]
		if !ok || msg.ReceiverID != receiverID {
			continue
		}
		if models.StatusRank(msg.Status) < models.StatusRank(models.StatusRead) {
			msg.Status = models.StatusRead
			msg.ReadAt = &now
			changed++
		}
	}
	return changed, nil
}

func (m *MockMessageRepository) MarkConversationRead(receiverID, senderID uint) ([]uint, error) {
	var ids []uint
	now := time.Now()
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && msg.Status != models.StatusRead {
			msg.Status = models.StatusRead
			msg.ReadAt = &now
			ids = append(ids, msg.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockMessageRepository) ListInbox(userID uint) ([]repository.InboxRow, error) {
	return []repository.InboxRow{}, nil
}

// MockBlockRepository is an in-memory implementation of
// BlockRepositoryInterface for testing
type MockBlockRepository struct {
	active map[[2]uint]bool // [blocker, blocked]
}

func NewMockBlockRepository() *MockBlockRepository {
	return &MockBlockRepository{active: make(map[[2]uint]bool)}
}

func (m *MockBlockRepository) Block(blockerID, blockedID uint) error {
	m.active[[2]uint{blockerID, blockedID}] = true
	return nil
}

func (m *MockBlockRepository) Unblock(blockerID, blockedID uint) error {
	m.active[[2]uint{blockerID, blockedID}] = false
	return nil
}

func (m *MockBlockRepository) IsBlocked(blockerID, blockedID uint) (bool, error) {
	return m.active[[2]uint{blockerID, blockedID}], nil
}

func (m *MockBlockRepository) HasActiveBlock(userID1, userID2 uint) (bool, error) {
	return m.active[[2]uint{userID1, userID2}] || m.active[[2]uint{userID2, userID1}], nil
}

// MockUserRepository is an in-memory implementation of
// UserRepositoryInterface for testing
type MockUserRepository struct {
	users map[uint]*models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uint]*models.User)}
}

func (m *MockUserRepository) AddUser(id uint, username string, deleted bool) {
	u := &models.User{ID: id, Username: username}
	if deleted {
		u.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
	m.users[id] = u
}

func (m *MockUserRepository) FindByID(id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) IsDeleted(id uint) (bool, error) {
	if u, ok := m.users[id]; ok {
		return u.DeletedAt.Valid, nil
	}
	return false, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) UpdateOnlineStatus(userID uint, isOnline bool) error {
	if u, ok := m.users[userID]; ok {
		u.IsOnline = isOnline
		return nil
	}
	return gorm.ErrRecordNotFound
}

// MockGroupRepository is an in-memory implementation of
// GroupRepositoryInterface for testing. Join/Leave maintain interval rows
// the same way the real repository does.
type MockGroupRepository struct {
	groups    map[uint]*models.Group
	intervals []*models.GroupMembership
	members   map[[2]uint]*models.GroupMember // [group, user]
	nextID    uint
}

func NewMockGroupRepository() *MockGroupRepository {
	return &MockGroupRepository{
		groups:  make(map[uint]*models.Group),
		members: make(map[[2]uint]*models.GroupMember),
		nextID:  1,
	}
}

func (m *MockGroupRepository) Create(group *models.Group) error {
	if group.ID == 0 {
		group.ID = m.nextID
		m.nextID++
	}
	m.groups[group.ID] = group
	return nil
}

func (m *MockGroupRepository) FindByID(id uint) (*models.Group, error) {
	if g, ok := m.groups[id]; ok {
		return g, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) openInterval(groupID, userID uint) *models.GroupMembership {
	for _, iv := range m.intervals {
		if iv.GroupID == groupID && iv.UserID == userID && iv.LeftAt == nil {
			return iv
		}
	}
	return nil
}

func (m *MockGroupRepository) Join(groupID, userID uint, role models.GroupRole, canSeePast bool) error {
	if m.openInterval(groupID, userID) != nil {
		return nil
	}
	iv := &models.GroupMembership{
		ID:       m.nextID,
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	m.nextID++
	m.intervals = append(m.intervals, iv)
	m.members[[2]uint{groupID, userID}] = &models.GroupMember{
		GroupID:            groupID,
		UserID:             userID,
		MembershipID:       iv.ID,
		Role:               role,
		IsActive:           true,
		CanSeePastMessages: canSeePast,
	}
	return nil
}

func (m *MockGroupRepository) Leave(groupID, userID uint) error {
	iv := m.openInterval(groupID, userID)
	if iv == nil {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	iv.LeftAt = &now
	if member, ok := m.members[[2]uint{groupID, userID}]; ok {
		member.IsActive = false
	}
	return nil
}

func (m *MockGroupRepository) IsActiveMember(groupID, userID uint) (bool, error) {
	member, ok := m.members[[2]uint{groupID, userID}]
	return ok && member.IsActive, nil
}

func (m *MockGroupRepository) ActiveMemberIDs(groupID uint) ([]uint, error) {
	var ids []uint
	for key, member := range m.members {
		if key[0] == groupID && member.IsActive {
			ids = append(ids, key[1])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockGroupRepository) GetMember(groupID, userID uint) (*models.GroupMember, error) {
	if member, ok := m.members[[2]uint{groupID, userID}]; ok {
		return member, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) GetMembers(groupID uint) ([]models.GroupMember, error) {
	var result []models.GroupMember
	for key, member := range m.members {
		if key[0] == groupID {
			result = append(result, *member)
		}
	}
	return result, nil
}

func (m *MockGroupRepository) MembershipIntervals(groupID, userID uint) ([]models.GroupMembership, error) {
	var result []models.GroupMembership
	for _, iv := range m.intervals {
		if iv.GroupID == groupID && iv.UserID == userID {
			result = append(result, *iv)
		}
	}
	return result, nil
}

func (m *MockGroupRepository) UserGroupIDs(userID uint) ([]uint, error) {
	var ids []uint
	for key, member := range m.members {
		if key[1] == userID && member.IsActive {
			ids = append(ids, key[0])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MockGroupMessageRepository is an in-memory implementation of
// GroupMessageRepositoryInterface for testing
type MockGroupMessageRepository struct {
	messages map[uint]*models.GroupMessage
	statuses []*models.GroupMessageStatus
	nextID   uint
	failNext error
}

func NewMockGroupMessageRepository() *MockGroupMessageRepository {
	return &MockGroupMessageRepository{
		messages: make(map[uint]*models.GroupMessage),
		nextID:   1,
	}
}

func (m *MockGroupMessageRepository) CreateWithStatuses(message *models.GroupMessage, statuses []models.GroupMessageStatus) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	if message.ID == 0 {
		message.ID = m.nextID
		m.nextID++
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m.messages[message.ID] = message
	for i := range statuses {
		statuses[i].GroupMessageID = message.ID
		st := statuses[i]
		m.statuses = append(m.statuses, &st)
	}
	return nil
}

func (m *MockGroupMessageRepository) FindByID(id uint) (*models.GroupMessage, error) {
	if msg, ok := m.messages[id]; ok {
		return msg, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupMessageRepository) FindByClientID(groupID uint, clientID string) (*models.GroupMessage, error) {
	for _, msg := range m.messages {
		if msg.GroupID == groupID && msg.ClientID == clientID {
			return msg, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupMessageRepository) FindGroupMessages(groupID uint, limit int) ([]models.GroupMessage, error) {
	var result []models.GroupMessage
	for _, msg := range m.messages {
		if msg.GroupID == groupID {
			result = append(result, *msg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockGroupMessageRepository) StatusesForMessages(messageIDs []uint) ([]models.GroupMessageStatus, error) {
	wanted := make(map[uint]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var result []models.GroupMessageStatus
	for _, st := range m.statuses {
		if wanted[st.GroupMessageID] {
			result = append(result, *st)
		}
	}
	return result, nil
}

func (m *MockGroupMessageRepository) StatusesForReceiver(groupID, receiverID uint, messageIDs []uint) ([]models.GroupMessageStatus, error) {
	wanted := make(map[uint]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var result []models.GroupMessageStatus
	for _, st := range m.statuses {
		if st.GroupID == groupID && st.ReceiverID == receiverID && wanted[st.GroupMessageID] {
			result = append(result, *st)
		}
	}
	return result, nil
}

func (m *MockGroupMessageRepository) MarkDelivered(groupID, receiverID uint, messageIDs []uint) (int64, error) {
	wanted := make(map[uint]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var changed int64
	now := time.Now()
	for _, st := range m.statuses {
		if st.GroupID == groupID && st.ReceiverID == receiverID && wanted[st.GroupMessageID] && st.Status == models.StatusSent {
			st.Status = models.StatusDelivered
			st.DeliveredAt = &now
			changed++
		}
	}
	return changed, nil
}

func (m *MockGroupMessageRepository) MarkRead(groupID, receiverID uint, messageIDs []uint) (int64, error) {
	wanted := make(map[uint]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var changed int64
	now := time.Now()
	for _, st := range m.statuses {
		if st.GroupID == groupID && st.ReceiverID == receiverID && wanted[st.GroupMessageID] &&
			models.StatusRank(st.Status) < models.StatusRank(models.StatusRead) {
			st.Status = models.StatusRead
			st.ReadAt = &now
			changed++
		}
	}
	return changed, nil
}

func (m *MockGroupMessageRepository) LastMessage(groupID uint) (*models.GroupMessage, error) {
	var last *models.GroupMessage
	for _, msg := range m.messages {
		if msg.GroupID == groupID && (last == nil || msg.ID > last.ID) {
			last = msg
		}
	}
	if last == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return last, nil
}

func (m *MockGroupMessageRepository) UnreadCount(groupID, receiverID uint) (int64, error) {
	var count int64
	for _, st := range m.statuses {
		if st.GroupID == groupID && st.ReceiverID == receiverID &&
			st.SenderID != receiverID && !st.HiddenForReceiver && st.Status != models.StatusRead {
			count++
		}
	}
	return count, nil
}

var errMockDown = errors.New("storage unavailable")
