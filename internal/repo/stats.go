// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file maintains the singleton Statistics aggregate.
// The row is only ever touched through the helpers below, and always from
// inside the transaction of the event that changes it, so the counters can
// never observably lag or race ahead of the event stream.
package repo

import (
	"errors"

	"gorm.io/gorm"

	"github.com/atcnet/acars-relay/internal/domain"
)

// EnsureStatistics idempotently creates the singleton row with all counters
// zero. Safe to call on every startup; an existing row is left untouched.
func EnsureStatistics(db *gorm.DB) error {
	var s domain.Statistics
	err := db.Where("id = ?", domain.StatisticsID).First(&s).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.Create(&domain.Statistics{ID: domain.StatisticsID}).Error
}

// GetStatistics returns the singleton row, or ErrNotFound before Initialize
// has run.
func GetStatistics(db *gorm.DB) (*domain.Statistics, error) {
	var s domain.Statistics
	if err := db.Where("id = ?", domain.StatisticsID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStatistics loads the singleton row, applies apply to it, and writes
// it back. A missing row (should not happen after Initialize) is a silent
// no-op rather than an error: counters are best-effort bookkeeping and must
// never fail the triggering operation.
func UpdateStatistics(db *gorm.DB, apply func(*domain.Statistics)) error {
	var s domain.Statistics
	err := db.Where("id = ?", domain.StatisticsID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	apply(&s)
	if s.OnlineStations < 0 {
		s.OnlineStations = 0
	}
	return db.Save(&s).Error
}
