// Package domain defines the core persistence models for the relay.
package domain

import "time"

// RelayDedupe records an external message identifier that has already been
// injected through the inbound path, keyed by (source, key). The external
// network may redeliver the same poll block across polling cycles; matching
// rows here cause the redelivery to be dropped instead of logged twice.
type RelayDedupe struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Source    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_relay_source_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_relay_source_key,priority:2"`
	MessageID uint64    `gorm:"not null"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (RelayDedupe) TableName() string { return "relay_dedupe" }
