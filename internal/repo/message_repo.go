// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"time"

	"gorm.io/gorm"

	"github.com/atcnet/acars-relay/internal/domain"
)

// CreateMessage inserts a new message row. The store assigns the ID
// (AUTOINCREMENT), so insertion can never fail on a key collision and IDs
// stay strictly increasing even across deletes.
func CreateMessage(db *gorm.DB, m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.Create(m).Error
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id uint64) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessageStatus overwrites the status of message id.
// Returns ErrNotFound when no row has that id. Direction and payload are
// never touched here; status is the only mutable message field.
func UpdateMessageStatus(db *gorm.DB, id uint64, status domain.MessageStatus) error {
	res := db.Model(&domain.Message{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessagesBefore removes every message created strictly before cutoff
// and returns how many rows were deleted. The predicate is evaluated inside
// the caller's transaction, so rows inserted concurrently with timestamps at
// or after the cutoff are never swept.
func DeleteMessagesBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.Where("created_at < ?", cutoff).Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}

// ListPendingOutbound returns up to limit Pending messages tagged for the
// external network, oldest first. The bridge drains this queue.
func ListPendingOutbound(db *gorm.DB, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.
		Where("direction = ? AND status = ?", domain.DirectionOutbound, domain.StatusPending).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessagesForCode uses a raw COUNT so a missing table surfaces as an error.
func CountMessagesForCode(db *gorm.DB, code string) (int64, error) {
	var total int64
	err := db.Raw(
		"SELECT COUNT(*) FROM messages WHERE sender_code = ? OR receiver_code = ?",
		code, code,
	).Scan(&total).Error
	return total, err
}

// ListMessagesForCodePage returns a page of messages sent from or addressed
// to code, ordered deterministically (ID ASC).
func ListMessagesForCodePage(db *gorm.DB, code string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.
		Where("sender_code = ? OR receiver_code = ?", code, code).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if out == nil {
		out = []domain.Message{}
	}
	return out, err
}
