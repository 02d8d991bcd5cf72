// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the RelayDedupe
// model used to drop redelivered inbound relay blocks.
package repo

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atcnet/acars-relay/internal/domain"
)

// ErrDuplicate indicates that a dedupe record already exists for the given
// (source, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetDedupe returns a non-expired record or ErrNotFound.
func GetDedupe(db *gorm.DB, source, key string, now time.Time) (*domain.RelayDedupe, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.RelayDedupe
	err := db.
		Where("source = ? AND key = ? AND expires_at > ?", source, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateDedupe inserts a record and returns ErrDuplicate on unique violation.
func CreateDedupe(db *gorm.DB, source, key string, messageID uint64, ttl time.Duration) (*domain.RelayDedupe, error) {
	now := time.Now().UTC()
	rec := &domain.RelayDedupe{
		ID:        uuid.NewString(),
		Source:    source,
		Key:       key,
		MessageID: messageID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// DeleteExpiredDedupe removes records whose ExpiresAt has passed.
func DeleteExpiredDedupe(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("expires_at <= ?", now).Delete(&domain.RelayDedupe{})
	return res.RowsAffected, res.Error
}
