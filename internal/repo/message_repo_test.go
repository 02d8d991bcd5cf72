package repo

import (
	"testing"
	"time"

	"github.com/atcnet/acars-relay/internal/domain"
)

func mkMsg(sender, receiver string, created time.Time, dir domain.MessageDirection, status domain.MessageStatus) *domain.Message {
	return &domain.Message{
		SenderCode:   sender,
		ReceiverCode: receiver,
		Payload:      "payload",
		CreatedAt:    created,
		Direction:    dir,
		Status:       status,
	}
}

func TestCreateMessage_AssignsIncreasingIDs(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})

	now := time.Now().UTC()
	var last uint64
	for i := 0; i < 5; i++ {
		m := mkMsg("YMML", "YSSY", now, domain.DirectionInternal, domain.StatusPending)
		if err := CreateMessage(db, m); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		if m.ID <= last {
			t.Fatalf("id not strictly increasing: %d after %d", m.ID, last)
		}
		last = m.ID
	}
}

func TestCreateMessage_IDsNeverReused(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})

	now := time.Now().UTC()
	m1 := mkMsg("YMML", "YSSY", now, domain.DirectionInternal, domain.StatusPending)
	if err := CreateMessage(db, m1); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := db.Delete(&domain.Message{}, m1.ID).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}

	m2 := mkMsg("YMML", "YSSY", now, domain.DirectionInternal, domain.StatusPending)
	if err := CreateMessage(db, m2); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m2.ID <= m1.ID {
		t.Fatalf("id reused after delete: %d vs %d", m2.ID, m1.ID)
	}
}

func TestUpdateMessageStatus(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})

	if err := UpdateMessageStatus(db, 999, domain.StatusDelivered); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	m := mkMsg("YMML", "YSSY", time.Now().UTC(), domain.DirectionOutbound, domain.StatusPending)
	if err := CreateMessage(db, m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := UpdateMessageStatus(db, m.ID, domain.StatusDelivered); err != nil {
		t.Fatalf("UpdateMessageStatus: %v", err)
	}

	got, err := GetMessage(db, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Status != domain.StatusDelivered {
		t.Fatalf("status not updated: %+v", got)
	}
	if got.Direction != domain.DirectionOutbound {
		t.Fatalf("direction must not change: %+v", got)
	}
}

func TestDeleteMessagesBefore_StrictCutoff(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})

	cutoff := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	older := mkMsg("YMML", "YSSY", cutoff.Add(-time.Second), domain.DirectionInternal, domain.StatusPending)
	exact := mkMsg("YMML", "YSSY", cutoff, domain.DirectionInternal, domain.StatusPending)
	newer := mkMsg("YMML", "YSSY", cutoff.Add(time.Second), domain.DirectionInternal, domain.StatusPending)
	for _, m := range []*domain.Message{older, exact, newer} {
		if err := CreateMessage(db, m); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	n, err := DeleteMessagesBefore(db, cutoff)
	if err != nil {
		t.Fatalf("DeleteMessagesBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 deletion, got %d", n)
	}

	// "Strictly older" means the row at the cutoff instant survives.
	if _, err := GetMessage(db, exact.ID); err != nil {
		t.Fatalf("cutoff-instant row swept: %v", err)
	}
	if _, err := GetMessage(db, newer.ID); err != nil {
		t.Fatalf("newer row swept: %v", err)
	}
	if _, err := GetMessage(db, older.ID); !IsNotFound(err) {
		t.Fatalf("older row should be gone, got %v", err)
	}
}

func TestListPendingOutbound(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})

	now := time.Now().UTC()
	wantIDs := make([]uint64, 0, 2)
	seed := []*domain.Message{
		mkMsg("YMML", "YSSY", now, domain.DirectionOutbound, domain.StatusPending),
		mkMsg("YMML", "YSSY", now, domain.DirectionInternal, domain.StatusPending),
		mkMsg("YMML", "YSSY", now, domain.DirectionOutbound, domain.StatusDelivered),
		mkMsg("YMML", "YSSY", now, domain.DirectionOutbound, domain.StatusPending),
	}
	for i, m := range seed {
		if err := CreateMessage(db, m); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		if i == 0 || i == 3 {
			wantIDs = append(wantIDs, m.ID)
		}
	}

	got, err := ListPendingOutbound(db, 10)
	if err != nil {
		t.Fatalf("ListPendingOutbound: %v", err)
	}
	if len(got) != 2 || got[0].ID != wantIDs[0] || got[1].ID != wantIDs[1] {
		t.Fatalf("unexpected queue: %+v", got)
	}

	limited, err := ListPendingOutbound(db, 1)
	if err != nil {
		t.Fatalf("ListPendingOutbound limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != wantIDs[0] {
		t.Fatalf("limit not honored: %+v", limited)
	}
}

func TestMessageHistoryPaging(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := CreateMessage(db, mkMsg("YMML", "YSSY", now, domain.DirectionInternal, domain.StatusPending)); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}
	if err := CreateMessage(db, mkMsg("YSSY", "YBBN", now, domain.DirectionInternal, domain.StatusPending)); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	// YMML appears as sender only; YSSY as both sender and receiver.
	total, err := CountMessagesForCode(db, "YSSY")
	if err != nil {
		t.Fatalf("CountMessagesForCode: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4, got %d", total)
	}

	page, err := ListMessagesForCodePage(db, "YSSY", 0, 2)
	if err != nil {
		t.Fatalf("ListMessagesForCodePage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page))
	}
	if page[0].ID >= page[1].ID {
		t.Fatalf("not ordered by id: %+v", page)
	}
}
