package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
)

// fakeSocket records writes instead of touching a network connection
type fakeSocket struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	writeErr error
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSocket) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.WriteMessage(1, data)
}

func (s *fakeSocket) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// fakePendingRepo is an in-memory pending queue for hub tests
type fakePendingRepo struct {
	mu      sync.Mutex
	entries []models.PendingMessage
	nextID  uint
}

func newFakePendingRepo() *fakePendingRepo {
	return &fakePendingRepo{nextID: 1}
}

func (r *fakePendingRepo) Enqueue(userID, messageID uint, payload string, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, models.PendingMessage{
		ID:        r.nextID,
		UserID:    userID,
		MessageID: messageID,
		Payload:   payload,
		Priority:  priority,
	})
	r.nextID++
	return nil
}

func (r *fakePendingRepo) GetPendingForUser(userID uint, limit int) ([]models.PendingMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.PendingMessage
	for _, pm := range r.entries {
		if pm.UserID == userID && len(result) < limit {
			result = append(result, pm)
		}
	}
	return result, nil
}

func (r *fakePendingRepo) GetRetryable(limit int) ([]models.PendingMessage, error) {
	return nil, nil
}

func (r *fakePendingRepo) MarkAttempted(id uint, attempts int, nextRetry *time.Time) error {
	return nil
}

func (r *fakePendingRepo) Delete(id uint) error {
	return r.DeleteBatch([]uint{id})
}

func (r *fakePendingRepo) DeleteBatch(ids []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uint]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	kept := r.entries[:0]
	for _, pm := range r.entries {
		if !wanted[pm.ID] {
			kept = append(kept, pm)
		}
	}
	r.entries = kept
	return nil
}

func (r *fakePendingRepo) CountPendingForUser(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, pm := range r.entries {
		if pm.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakePendingRepo) CleanupOld(olderThan time.Duration) error { return nil }

func (r *fakePendingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestHubRegisterAndPresence(t *testing.T) {
	hub := NewHub(nil)

	if hub.IsOnline(1) {
		t.Error("user reported online before registering")
	}

	conn := &fakeSocket{}
	hub.Register(1, conn, false)

	if !hub.IsOnline(1) {
		t.Error("user not reported online after registering")
	}
	if hub.Count() != 1 {
		t.Errorf("Count = %d, want 1", hub.Count())
	}

	hub.Unregister(1)
	if hub.IsOnline(1) {
		t.Error("user still reported online after unregistering")
	}
}

func TestHubSupersession(t *testing.T) {
	hub := NewHub(nil)

	first := &fakeSocket{}
	second := &fakeSocket{}
	hub.Register(1, first, false)
	hub.Register(1, second, false)

	if !first.isClosed() {
		t.Error("superseded connection not closed")
	}
	if hub.Count() != 1 {
		t.Errorf("Count = %d, want 1 after supersession", hub.Count())
	}

	// the old read loop's deferred cleanup must not evict the new connection
	hub.UnregisterConn(1, first)
	if !hub.IsOnline(1) {
		t.Error("stale UnregisterConn evicted the superseding connection")
	}

	hub.UnregisterConn(1, second)
	if hub.IsOnline(1) {
		t.Error("current UnregisterConn did not remove the connection")
	}
}

func TestHubActiveChats(t *testing.T) {
	hub := NewHub(nil)
	hub.Register(1, &fakeSocket{}, false)

	// viewing is scoped per peer, and multiple threads can be open at once
	hub.SetActiveChat(1, 2)
	hub.SetActiveChat(1, 3)

	if !hub.IsViewing(1, 2) || !hub.IsViewing(1, 3) {
		t.Error("open chats not tracked")
	}
	if hub.IsViewing(1, 4) {
		t.Error("IsViewing true for a chat never opened")
	}

	hub.ClearActiveChat(1, 2)
	if hub.IsViewing(1, 2) {
		t.Error("closed chat still tracked")
	}
	if !hub.IsViewing(1, 3) {
		t.Error("unrelated chat cleared")
	}

	// disconnect clears everything
	hub.Unregister(1)
	if hub.IsViewing(1, 3) {
		t.Error("IsViewing true for disconnected user")
	}
}

func TestHubSetActiveChatRequiresConnection(t *testing.T) {
	hub := NewHub(nil)

	hub.SetActiveChat(1, 2)
	if hub.IsViewing(1, 2) {
		t.Error("active chat recorded for a user with no connection")
	}
}

func TestHubSendQueuesWhenOffline(t *testing.T) {
	pending := newFakePendingRepo()
	hub := NewHub(pending)

	payload := map[string]interface{}{"type": "receive_message", "id": 42}
	if err := hub.SendToUserWithID(7, 42, payload); err != nil {
		t.Fatalf("SendToUserWithID error = %v", err)
	}
	if pending.count() != 1 {
		t.Errorf("queued %d messages, want 1", pending.count())
	}

	// ephemeral events (no message id) are dropped, not queued
	if err := hub.SendToUser(7, payload); err != nil {
		t.Fatalf("SendToUser error = %v", err)
	}
	if pending.count() != 1 {
		t.Errorf("ephemeral event was queued, count = %d", pending.count())
	}
}

func TestHubSendFailureEvictsAndQueues(t *testing.T) {
	pending := newFakePendingRepo()
	hub := NewHub(pending)

	conn := &fakeSocket{writeErr: errors.New("broken pipe")}
	hub.Register(3, conn, false)

	if err := hub.SendToUserWithID(3, 42, map[string]interface{}{"type": "receive_message"}); err != nil {
		t.Fatalf("SendToUserWithID error = %v", err)
	}
	if hub.IsOnline(3) {
		t.Error("dead connection not evicted after write failure")
	}
	if pending.count() != 1 {
		t.Errorf("failed delivery not queued, count = %d", pending.count())
	}
}

func TestHubFlushPendingMessages(t *testing.T) {
	pending := newFakePendingRepo()
	hub := NewHub(pending)

	pending.Enqueue(5, 1, `{"type":"receive_message","id":1}`, 0)
	pending.Enqueue(5, 2, `{"type":"receive_message","id":2}`, 0)

	conn := &fakeSocket{}
	hub.Register(5, conn, false)

	if err := hub.FlushPendingMessages(5); err != nil {
		t.Fatalf("FlushPendingMessages error = %v", err)
	}
	if pending.count() != 0 {
		t.Errorf("flushed queue still has %d entries", pending.count())
	}
	if conn.frameCount() != 1 {
		t.Fatalf("flush wrote %d frames, want 1 batch envelope", conn.frameCount())
	}

	var envelope struct {
		Type  string        `json:"type"`
		Count int           `json:"count"`
		Msgs  []interface{} `json:"messages"`
	}
	if err := json.Unmarshal(conn.frames[0], &envelope); err != nil {
		t.Fatalf("batch envelope unmarshal error = %v", err)
	}
	if envelope.Type != "batch" || envelope.Count != 2 || len(envelope.Msgs) != 2 {
		t.Errorf("batch envelope = %+v, want type=batch count=2", envelope)
	}
}

func TestHubPendingQueueCap(t *testing.T) {
	pending := newFakePendingRepo()
	hub := NewHub(pending)
	hub.maxPendingPerUser = 2

	for i := uint(1); i <= 4; i++ {
		if err := hub.SendToUserWithID(7, i, map[string]interface{}{"type": "receive_message", "id": i}); err != nil {
			t.Fatalf("SendToUserWithID error = %v", err)
		}
	}
	if pending.count() != 2 {
		t.Errorf("queue grew to %d entries, want cap of 2", pending.count())
	}
}

// racySocket flags any overlapping writers reaching the connection
type racySocket struct {
	inflight int32
	overlap  int32
	writes   int32
}

func (s *racySocket) WriteMessage(messageType int, data []byte) error {
	if atomic.AddInt32(&s.inflight, 1) > 1 {
		atomic.StoreInt32(&s.overlap, 1)
	}
	time.Sleep(100 * time.Microsecond)
	atomic.AddInt32(&s.writes, 1)
	atomic.AddInt32(&s.inflight, -1)
	return nil
}

func (s *racySocket) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.WriteMessage(1, data)
}

func (s *racySocket) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (s *racySocket) Close() error { return nil }

func TestHubSerializesWrites(t *testing.T) {
	hub := NewHub(nil)
	sock := &racySocket{}
	client := hub.Register(9, sock, false)

	// Hub sends, broadcasts and handler replies all race on one connection;
	// the wrapper must let only one through at a time.
	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_ = hub.SendToUser(9, map[string]interface{}{"type": "status_update"})
			case 1:
				hub.BroadcastToUsers([]uint{9}, map[string]interface{}{"type": "group_member_update"})
			default:
				_ = client.WriteJSON(map[string]interface{}{"type": "error"})
			}
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&sock.overlap) == 1 {
		t.Error("overlapping writers reached the connection")
	}
	if got := atomic.LoadInt32(&sock.writes); got != 9 {
		t.Errorf("writes = %d, want 9", got)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	original := []byte(`{"type":"receive_message","message":"hello hello hello hello"}`)

	compressed, err := compressData(original)
	if err != nil {
		t.Fatalf("compressData error = %v", err)
	}
	restored, err := DecompressMessage(compressed)
	if err != nil {
		t.Fatalf("DecompressMessage error = %v", err)
	}
	if string(restored) != string(original) {
		t.Errorf("round trip mismatch: %q != %q", restored, original)
	}

	if _, err := DecompressMessage([]byte("not gzip")); err == nil {
		t.Error("DecompressMessage accepted garbage input")
	}
}
