// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Station
// presence model.
//
// All functions are context-free and accept a *gorm.DB handle, making them
// safe for use within transactions: the operation layer passes its
// transaction handle so that presence reads and the subsequent writes land
// in the same atomic unit.
//
// Error semantics:
//   - When a station is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// There is intentionally no delete function: stations are archived as
// offline rows, never removed, so a position's history is preserved.
package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atcnet/acars-relay/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetStationByClient fetches the presence row owned by clientID, or
// ErrNotFound if the identity has never logged in.
func GetStationByClient(db *gorm.DB, clientID string) (*domain.Station, error) {
	var st domain.Station
	if err := db.Where("client_id = ?", clientID).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// GetOnlineStationByCode returns the row currently holding code online, or
// ErrNotFound when the code is free. The caller must already have
// normalized code to uppercase.
func GetOnlineStationByCode(db *gorm.DB, code string) (*domain.Station, error) {
	var st domain.Station
	err := db.Where("station_code = ? AND is_online = ?", code, true).First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// UpsertStation inserts the presence row for clientID or, when the identity
// has logged in before, overwrites its code, login time, and online flag in
// place. The primary-key conflict clause makes the insert-vs-update branch
// a single idempotent statement.
func UpsertStation(db *gorm.DB, clientID, code string, loginTime time.Time) (*domain.Station, error) {
	st := &domain.Station{
		ClientID:    clientID,
		StationCode: code,
		LoginTime:   loginTime,
		IsOnline:    true,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"station_code", "login_time", "is_online"}),
	}).Create(st).Error
	if err != nil {
		return nil, err
	}
	return st, nil
}

// SetStationOffline flips the presence row for clientID to offline.
// Returns ErrNotFound when the identity has no row.
func SetStationOffline(db *gorm.DB, clientID string) error {
	res := db.Model(&domain.Station{}).
		Where("client_id = ?", clientID).
		Update("is_online", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStations returns presence rows, optionally restricted to online ones,
// ordered by station code for a stable roster.
func ListStations(db *gorm.DB, onlineOnly bool) ([]domain.Station, error) {
	var out []domain.Station
	q := db.Order("station_code ASC")
	if onlineOnly {
		q = q.Where("is_online = ?", true)
	}
	err := q.Find(&out).Error
	if out == nil {
		out = []domain.Station{}
	}
	return out, err
}

// IsNotFound reports whether err is the repository's not-found sentinel.
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
