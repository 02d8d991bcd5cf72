// Package domain defines the persistence models for stations, messages, and
// the statistics aggregate. These types are mapped with GORM and form the
// core data layer of the relay.
package domain

import "time"

// MessageDirection classifies where a message came from and where it is
// headed relative to the external relay network.
type MessageDirection string

// Message directions. Direction is fixed at insertion time and never changes
// for the lifetime of a row.
const (
	DirectionInternal MessageDirection = "internal"
	DirectionOutbound MessageDirection = "outbound_external"
	DirectionInbound  MessageDirection = "inbound_external"
)

// MessageStatus tracks delivery progress of a message.
type MessageStatus string

// Message statuses.
const (
	StatusPending   MessageStatus = "pending"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
)

// Valid reports whether s is one of the known message statuses.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// Station represents a controller position claimed by a connected client.
// There is exactly one row per client identity that has ever logged in;
// subsequent logins and logouts overwrite the row in place. Rows are never
// deleted, so a station's history survives as an offline record.
//
// Fields:
//   - ClientID: opaque caller identity issued by the hosting platform.
//   - StationCode: uppercase position code (e.g. "YMML"); at most one
//     *online* row may hold a given code at any time. The constraint spans
//     online rows only, so it is enforced transactionally rather than with
//     a unique index.
//   - LoginTime: time of the most recent login.
//   - IsOnline: whether the identity currently holds the code.
type Station struct {
	ClientID    string    `json:"client_id"    gorm:"type:varchar(64);primaryKey"`
	StationCode string    `json:"station_code" gorm:"type:varchar(16);not null;index:idx_station_code"`
	LoginTime   time.Time `json:"login_time"`
	IsOnline    bool      `json:"is_online"    gorm:"not null;index"`
}

// TableName returns the database table name for Station.
func (Station) TableName() string { return "stations" }

// Message is one entry in the relay log. IDs are assigned by the store,
// strictly increasing and never reused (sqlite AUTOINCREMENT semantics).
//
// Fields:
//   - ID: monotonically increasing identifier.
//   - SenderCode / ReceiverCode: uppercase station codes.
//   - Payload: opaque message text; never parsed by this core.
//   - CreatedAt: insertion time, used by the retention sweep.
//   - Direction: immutable origin/destination classification.
//   - Status: delivery state, the only mutable field.
type Message struct {
	ID           uint64           `json:"id"            gorm:"primaryKey;autoIncrement"`
	SenderCode   string           `json:"sender_code"   gorm:"type:varchar(16);not null;index:idx_msg_sender"`
	ReceiverCode string           `json:"receiver_code" gorm:"type:varchar(16);not null;index:idx_msg_receiver"`
	Payload      string           `json:"payload"       gorm:"type:text;not null"`
	CreatedAt    time.Time        `json:"created_at"    gorm:"index"`
	Direction    MessageDirection `json:"direction"     gorm:"type:varchar(24);not null"`
	Status       MessageStatus    `json:"status"        gorm:"type:varchar(16);not null;index"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// StatisticsID is the fixed primary key of the singleton Statistics row.
const StatisticsID = 0

// Statistics is the process-wide aggregate, maintained incrementally in the
// same transaction as every presence or message event that changes it. It is
// never recomputed from scratch.
//
// The ID must carry autoIncrement:false: GORM treats integer primary keys as
// auto-increment and would drop the zero value on insert, landing the row at
// id 1 where no lookup by StatisticsID would ever find it.
type Statistics struct {
	ID                  int   `json:"-"                     gorm:"primaryKey;autoIncrement:false"`
	TotalMessagesSent   int64 `json:"total_messages_sent"   gorm:"not null"`
	TotalExternalRelays int64 `json:"total_external_relays" gorm:"not null"`
	OnlineStations      int64 `json:"online_stations"       gorm:"not null"`
}

// TableName returns the database table name for Statistics.
func (Statistics) TableName() string { return "statistics" }
