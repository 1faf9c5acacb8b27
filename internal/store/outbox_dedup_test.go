package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// --- Outbox repo tests ---

func TestSQLiteStore_OutboxRepo_EnqueueAndClaim(t *testing.T) {
	s := newTestSQLiteStore(t)

	id, err := s.EnqueueOutboxMessage("+15550001", "Hello", time.Now().Add(-time.Second), "")
	if err != nil {
		t.Fatalf("EnqueueOutboxMessage failed: %v", err)
	}
	if id == "" {
		t.Fatal("EnqueueOutboxMessage returned empty ID")
	}

	msgs, err := s.ClaimDueOutboxMessages(time.Now(), 10)
	if err != nil {
		t.Fatalf("ClaimDueOutboxMessages failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Recipient != "+15550001" || msgs[0].Body != "Hello" {
		t.Errorf("unexpected message %+v", msgs[0])
	}
	if msgs[0].Status != OutboxStatusSending {
		t.Errorf("Expected status 'sending', got %q", msgs[0].Status)
	}
	if msgs[0].Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", msgs[0].Attempts)
	}

	// Already claimed
	again, _ := s.ClaimDueOutboxMessages(time.Now(), 10)
	if len(again) != 0 {
		t.Errorf("Expected 0 messages on second claim, got %d", len(again))
	}
}

func TestSQLiteStore_OutboxRepo_NotDueYet(t *testing.T) {
	s := newTestSQLiteStore(t)

	now := time.Now()
	if _, err := s.EnqueueOutboxMessage("+1", "later", now.Add(time.Hour), ""); err != nil {
		t.Fatalf("EnqueueOutboxMessage failed: %v", err)
	}
	msgs, _ := s.ClaimDueOutboxMessages(now, 10)
	if len(msgs) != 0 {
		t.Fatalf("Expected 0 due messages, got %d", len(msgs))
	}
	msgs, _ = s.ClaimDueOutboxMessages(now.Add(2*time.Hour), 10)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 due message later, got %d", len(msgs))
	}
}

func TestSQLiteStore_OutboxRepo_DedupeKey(t *testing.T) {
	s := newTestSQLiteStore(t)
	at := time.Now().Add(time.Hour)

	id1, err := s.EnqueueOutboxMessage("+1", "a", at, "dedupe-1")
	if err != nil {
		t.Fatalf("EnqueueOutboxMessage 1 failed: %v", err)
	}
	id2, err := s.EnqueueOutboxMessage("+1", "a", at, "dedupe-1")
	if err != nil {
		t.Fatalf("EnqueueOutboxMessage 2 failed: %v", err)
	}
	if id2 != id1 {
		t.Errorf("Expected same ID for duplicate dedupe key, got %q and %q", id1, id2)
	}

	// A canceled message no longer blocks its key
	if err := s.CancelOutboxMessage(id1); err != nil {
		t.Fatalf("CancelOutboxMessage failed: %v", err)
	}
	id3, _ := s.EnqueueOutboxMessage("+1", "a", at, "dedupe-1")
	if id3 == id1 {
		t.Error("Expected a new ID after the original was canceled")
	}
}

func TestSQLiteStore_OutboxRepo_MarkSent(t *testing.T) {
	s := newTestSQLiteStore(t)

	id, _ := s.EnqueueOutboxMessage("+1", "x", time.Now().Add(-time.Second), "")
	msgs, _ := s.ClaimDueOutboxMessages(time.Now(), 10)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if err := s.MarkOutboxMessageSent(id); err != nil {
		t.Fatalf("MarkOutboxMessageSent failed: %v", err)
	}

	list, err := s.ListOutboxMessages("")
	if err != nil {
		t.Fatalf("ListOutboxMessages failed: %v", err)
	}
	if len(list) != 1 || list[0].Status != OutboxStatusSent {
		t.Errorf("Expected one sent message, got %+v", list)
	}
	if list[0].LockedAt != nil {
		t.Error("sent message should not stay locked")
	}
}

func TestSQLiteStore_OutboxRepo_FailIsTerminal(t *testing.T) {
	s := newTestSQLiteStore(t)

	id, _ := s.EnqueueOutboxMessage("+1", "x", time.Now().Add(-time.Second), "")
	s.ClaimDueOutboxMessages(time.Now(), 10)

	if err := s.FailOutboxMessage(id, "send error"); err != nil {
		t.Fatalf("FailOutboxMessage failed: %v", err)
	}
	msgs, _ := s.ClaimDueOutboxMessages(time.Now().Add(time.Hour), 10)
	if len(msgs) != 0 {
		t.Fatalf("Expected failed message to stay failed, got %d claimable", len(msgs))
	}
	list, _ := s.ListOutboxMessages("+1")
	if len(list) != 1 || list[0].Status != OutboxStatusFailed || list[0].LastError != "send error" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestSQLiteStore_OutboxRepo_Cancel(t *testing.T) {
	s := newTestSQLiteStore(t)

	id, _ := s.EnqueueOutboxMessage("+1", "x", time.Now().Add(time.Hour), "")
	if err := s.CancelOutboxMessage(id); err != nil {
		t.Fatalf("CancelOutboxMessage failed: %v", err)
	}
	if err := s.CancelOutboxMessage(id); !errors.Is(err, ErrOutboxMessageNotFound) {
		t.Errorf("second cancel: expected ErrOutboxMessageNotFound, got %v", err)
	}
	if err := s.CancelOutboxMessage("sched_missing"); !errors.Is(err, ErrOutboxMessageNotFound) {
		t.Errorf("unknown id: expected ErrOutboxMessageNotFound, got %v", err)
	}
	msgs, _ := s.ClaimDueOutboxMessages(time.Now().Add(2*time.Hour), 10)
	if len(msgs) != 0 {
		t.Errorf("canceled message was claimed")
	}
}

func TestSQLiteStore_OutboxRepo_ListByRecipient(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := time.Now()

	s.EnqueueOutboxMessage("+1", "second", now.Add(2*time.Hour), "")
	s.EnqueueOutboxMessage("+1", "first", now.Add(time.Hour), "")
	s.EnqueueOutboxMessage("+2", "other", now.Add(time.Hour), "")

	list, err := s.ListOutboxMessages("+1")
	if err != nil {
		t.Fatalf("ListOutboxMessages failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 messages for +1, got %d", len(list))
	}
	if list[0].Body != "first" || list[1].Body != "second" {
		t.Errorf("Expected due-time order, got %q then %q", list[0].Body, list[1].Body)
	}

	all, _ := s.ListOutboxMessages("")
	if len(all) != 3 {
		t.Errorf("Expected 3 messages overall, got %d", len(all))
	}
}

func TestSQLiteStore_OutboxRepo_RequeueStale(t *testing.T) {
	s := newTestSQLiteStore(t)

	s.EnqueueOutboxMessage("+1", "x", time.Now().Add(-time.Second), "")
	s.ClaimDueOutboxMessages(time.Now(), 10)

	n, err := s.RequeueStaleSendingMessages(time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("RequeueStaleSendingMessages failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 requeued, got %d", n)
	}
	msgs, _ := s.ClaimDueOutboxMessages(time.Now(), 10)
	if len(msgs) != 1 {
		t.Errorf("Expected requeued message to be claimable, got %d", len(msgs))
	}
}

// --- Dedup repo tests ---

func TestSQLiteStore_DedupRepo_Basic(t *testing.T) {
	s := newTestSQLiteStore(t)

	dup, err := s.IsDuplicate("msg-1")
	if err != nil {
		t.Fatalf("IsDuplicate failed: %v", err)
	}
	if dup {
		t.Error("Expected false for new message")
	}

	isNew, err := s.RecordInbound("msg-1", "+15550001")
	if err != nil {
		t.Fatalf("RecordInbound failed: %v", err)
	}
	if !isNew {
		t.Error("Expected isNew=true for first record")
	}

	dup, _ = s.IsDuplicate("msg-1")
	if !dup {
		t.Error("Expected true for duplicate message")
	}

	isNew2, err := s.RecordInbound("msg-1", "+15550001")
	if err != nil {
		t.Fatalf("RecordInbound duplicate failed: %v", err)
	}
	if isNew2 {
		t.Error("Expected isNew=false for duplicate record")
	}
}

func TestSQLiteStore_DedupRepo_ListSeenIDs(t *testing.T) {
	s := newTestSQLiteStore(t)

	for _, id := range []string{"c", "a", "b"} {
		s.RecordInbound(id, "")
	}
	ids, err := s.ListSeenIDs()
	if err != nil {
		t.Fatalf("ListSeenIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("Expected sorted ids, got %v", ids)
	}
}

// --- OutboxSender tests ---

func TestOutboxSender_Basic(t *testing.T) {
	s := newTestSQLiteStore(t)

	var sent int32
	sendFunc := func(ctx context.Context, msg OutboxMessage) error {
		atomic.AddInt32(&sent, 1)
		return nil
	}

	sender := NewOutboxSender(s, sendFunc, 50*time.Millisecond)

	if _, err := s.EnqueueOutboxMessage("+1", "Hello", time.Now().Add(-time.Second), ""); err != nil {
		t.Fatalf("EnqueueOutboxMessage failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sender.Run(ctx)
		close(done)
	}()
	<-done

	if atomic.LoadInt32(&sent) != 1 {
		t.Errorf("Expected 1 send, got %d", atomic.LoadInt32(&sent))
	}
}

func TestOutboxSender_FailureIsNotRetried(t *testing.T) {
	s := newTestSQLiteStore(t)

	calls := 0
	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		calls++
		return errors.New("gateway down")
	}, time.Minute)

	id, _ := s.EnqueueOutboxMessage("+1", "x", time.Now().Add(-time.Second), "")

	if n := sender.poll(context.Background()); n != 0 {
		t.Errorf("Expected 0 sent, got %d", n)
	}
	if n := sender.poll(context.Background()); n != 0 {
		t.Errorf("Expected 0 sent, got %d", n)
	}
	if calls != 1 {
		t.Errorf("Expected exactly one attempt, got %d", calls)
	}
	list, _ := s.ListOutboxMessages("+1")
	if len(list) != 1 || list[0].ID != id || list[0].Status != OutboxStatusFailed {
		t.Errorf("unexpected outbox state %+v", list)
	}
}

func TestOutboxSender_RecoverStaleMessages(t *testing.T) {
	s := newTestSQLiteStore(t)

	s.EnqueueOutboxMessage("+1", "x", time.Now().Add(-time.Hour), "")
	s.ClaimDueOutboxMessages(time.Now().Add(-10*time.Minute), 10)

	var sent int32
	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		atomic.AddInt32(&sent, 1)
		return nil
	}, time.Minute)

	if err := sender.RecoverStaleMessages(); err != nil {
		t.Fatalf("RecoverStaleMessages failed: %v", err)
	}
	if n := sender.poll(context.Background()); n != 1 {
		t.Errorf("Expected recovered message to be sent, got %d", n)
	}
}
