// Package services – RelayService
//
// This file implements RelayService, the only component with write access to
// the presence, message, and statistics stores. Every externally invokable
// operation runs inside a single GORM transaction: all reads and writes it
// performs either fully commit or fully discard, and SQLite's single-writer
// WAL mode serializes concurrent invocations, so no operation ever observes
// a partial effect of another.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include client and station identifiers where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/atcnet/acars-relay/internal/domain"
	"github.com/atcnet/acars-relay/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// defaultRetentionWindow is how long messages are kept before the sweep
	// removes them.
	defaultRetentionWindow = time.Hour

	// defaultDedupeTTL bounds how long an inbound relay identifier is
	// remembered. Redeliveries arrive within a few polling cycles, so a day
	// is generous.
	defaultDedupeTTL = 24 * time.Hour

	// dedupeSource namespaces inbound relay identifiers in the dedupe table.
	dedupeSource = "relay"
)

// upperCaser performs locale-independent uppercasing of station codes.
var upperCaser = cases.Upper(language.Und)

// NormalizeCode trims and uppercases a station code. "ymml" and "YMML" name
// the same station.
func NormalizeCode(code string) string {
	return upperCaser.String(strings.TrimSpace(code))
}

// RelayService coordinates the atomic state transitions of the relay core.
type RelayService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// RetentionWindow is the age beyond which CleanupOldMessages purges
	// messages. Zero means the one-hour default.
	RetentionWindow time.Duration

	// DedupeTTL is how long inbound relay identifiers are remembered.
	// Zero means the default.
	DedupeTTL time.Duration

	// Now is a clock seam for tests; nil means time.Now.
	Now func() time.Time
}

// NewRelayService constructs a RelayService with default retention settings.
func NewRelayService(db *gorm.DB) *RelayService {
	return &RelayService{DB: db}
}

func (s *RelayService) clock() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RelayService) retention() time.Duration {
	if s.RetentionWindow > 0 {
		return s.RetentionWindow
	}
	return defaultRetentionWindow
}

func (s *RelayService) dedupeTTL() time.Duration {
	if s.DedupeTTL > 0 {
		return s.DedupeTTL
	}
	return defaultDedupeTTL
}

// Initialize idempotently ensures the statistics singleton exists with all
// counters zero. It runs once at system start and is a no-op thereafter.
func (s *RelayService) Initialize(ctx context.Context) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.EnsureStatistics(tx)
	})
}

// Login claims stationCode for clientID.
//
// Semantics:
//   - The code is uppercase-normalized; a blank code yields ErrEmptyStationCode.
//   - If a different identity holds the code online, ErrStationActive is
//     returned and nothing changes. An offline row holding the code does not
//     block the claim.
//   - Otherwise the caller's presence row is upserted (insert on first login,
//     overwrite of code/login time/online flag on return visits).
//   - The online-station counter moves only on a genuine offline→online
//     transition; a re-login while already online updates the row but leaves
//     the counter alone.
//
// Concurrency: the free-code check and the upsert share one transaction, so
// two racing claims on the same code serialize and exactly one wins; the
// loser sees ErrStationActive, never a silently overwritten row.
func (s *RelayService) Login(ctx context.Context, clientID, stationCode string) (*domain.Station, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "Login",
		trace.WithAttributes(
			attribute.String("client.id", clientID),
			attribute.String("station.code", stationCode),
		),
	)
	defer span.End()

	code := NormalizeCode(stationCode)
	if code == "" {
		return nil, ErrEmptyStationCode
	}

	var out *domain.Station
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing, err := repo.GetOnlineStationByCode(tx, code); err == nil {
			if existing.ClientID != clientID {
				return ErrStationActive
			}
		} else if !repo.IsNotFound(err) {
			return err
		}

		prev, err := repo.GetStationByClient(tx, clientID)
		if err != nil && !repo.IsNotFound(err) {
			return err
		}
		wasOnline := err == nil && prev.IsOnline

		st, err := repo.UpsertStation(tx, clientID, code, s.clock())
		if err != nil {
			return err
		}
		out = st

		if wasOnline {
			return nil
		}
		return repo.UpdateStatistics(tx, func(agg *domain.Statistics) {
			agg.OnlineStations++
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Logout marks the caller's presence row offline.
//
// A caller with no presence row gets ErrNotLoggedIn. A caller whose row is
// already offline succeeds as a no-op without touching the counter; only an
// online→offline transition decrements it (saturating at zero).
func (s *RelayService) Logout(ctx context.Context, clientID string) error {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "Logout",
		trace.WithAttributes(attribute.String("client.id", clientID)),
	)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := repo.GetStationByClient(tx, clientID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrNotLoggedIn
			}
			return err
		}
		if !st.IsOnline {
			return nil
		}
		if err := repo.SetStationOffline(tx, clientID); err != nil {
			return err
		}
		return repo.UpdateStatistics(tx, func(agg *domain.Statistics) {
			agg.OnlineStations--
		})
	})
}

// OnDisconnect is the system hook fired when a client's connection drops.
// It has the same effect as Logout, but a disconnecting caller cannot
// receive a response, so the error is swallowed rather than propagated.
func (s *RelayService) OnDisconnect(ctx context.Context, clientID string) {
	if err := s.Logout(ctx, clientID); err != nil && !errors.Is(err, ErrNotLoggedIn) {
		// Presence cleanup is best effort; nothing downstream can act on this.
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
	}
}

// SendMessage records an outgoing message from the caller's station.
//
// The caller must hold an online presence row (ErrNotLoggedIn otherwise).
// The message starts Pending; routeToExternal tags it for the bridge and
// additionally bumps the external-relay counter. TotalMessagesSent counts
// every successful call.
func (s *RelayService) SendMessage(ctx context.Context, clientID, receiverCode, payload string, routeToExternal bool) (*domain.Message, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "SendMessage",
		trace.WithAttributes(
			attribute.String("client.id", clientID),
			attribute.String("receiver.code", receiverCode),
			attribute.Bool("route.external", routeToExternal),
		),
	)
	defer span.End()

	recv := NormalizeCode(receiverCode)
	if recv == "" {
		return nil, ErrEmptyStationCode
	}

	direction := domain.DirectionInternal
	if routeToExternal {
		direction = domain.DirectionOutbound
	}

	var out *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sender, err := repo.GetStationByClient(tx, clientID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrNotLoggedIn
			}
			return err
		}
		if !sender.IsOnline {
			return ErrNotLoggedIn
		}

		m := &domain.Message{
			SenderCode:   sender.StationCode,
			ReceiverCode: recv,
			Payload:      payload,
			CreatedAt:    s.clock(),
			Direction:    direction,
			Status:       domain.StatusPending,
		}
		if err := repo.CreateMessage(tx, m); err != nil {
			return err
		}
		out = m

		return repo.UpdateStatistics(tx, func(agg *domain.Statistics) {
			agg.TotalMessagesSent++
			if routeToExternal {
				agg.TotalExternalRelays++
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReceiveInbound injects a message arriving from the external relay network.
//
// This is the trusted bridge path: it requires no presence row, the message
// lands already Delivered (the external network confirmed it before handing
// it over), and neither the sent nor the relay counter moves.
//
// A non-empty dedupeKey names the external network's identifier for the
// block; if it was seen recently the redelivery is dropped and (nil, nil)
// is returned.
func (s *RelayService) ReceiveInbound(ctx context.Context, senderCode, receiverCode, payload, dedupeKey string) (*domain.Message, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "ReceiveInbound",
		trace.WithAttributes(
			attribute.String("sender.code", senderCode),
			attribute.String("receiver.code", receiverCode),
		),
	)
	defer span.End()

	var out *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dedupeKey != "" {
			_, err := repo.GetDedupe(tx, dedupeSource, dedupeKey, s.clock())
			if err == nil {
				return nil // already injected
			}
			if !repo.IsNotFound(err) {
				return err
			}
		}

		m := &domain.Message{
			SenderCode:   NormalizeCode(senderCode),
			ReceiverCode: NormalizeCode(receiverCode),
			Payload:      payload,
			CreatedAt:    s.clock(),
			Direction:    domain.DirectionInbound,
			Status:       domain.StatusDelivered,
		}
		if err := repo.CreateMessage(tx, m); err != nil {
			return err
		}
		out = m

		if dedupeKey != "" {
			if _, err := repo.CreateDedupe(tx, dedupeSource, dedupeKey, m.ID, s.dedupeTTL()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMessageStatus overwrites the status of message id.
//
// Any known status may replace any other; the bridge legitimately requeues
// Failed messages back to Pending, so no forward-only check is enforced.
// An unknown status value yields ErrInvalidStatus, a missing id
// ErrMessageNotFound.
func (s *RelayService) UpdateMessageStatus(ctx context.Context, id uint64, status domain.MessageStatus) error {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "UpdateMessageStatus",
		trace.WithAttributes(
			attribute.Int64("message.id", int64(id)),
			attribute.String("message.status", string(status)),
		),
	)
	defer span.End()

	if !status.Valid() {
		return ErrInvalidStatus
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateMessageStatus(tx, id, status); err != nil {
			if repo.IsNotFound(err) {
				return ErrMessageNotFound
			}
			return err
		}
		return nil
	})
}

// CleanupOldMessages deletes every message created strictly before
// now − RetentionWindow, along with expired dedupe records, and returns how
// many messages were removed. The cutoff is evaluated inside the transaction,
// so messages inserted concurrently with timestamps at or after the cutoff
// are never swept.
func (s *RelayService) CleanupOldMessages(ctx context.Context) (int64, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "CleanupOldMessages")
	defer span.End()

	var removed int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock()
		n, err := repo.DeleteMessagesBefore(tx, now.Add(-s.retention()))
		if err != nil {
			return err
		}
		removed = n
		_, err = repo.DeleteExpiredDedupe(tx, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("messages.removed", removed))
	return removed, nil
}

// Message returns one entry of the relay log, or ErrMessageNotFound.
func (s *RelayService) Message(ctx context.Context, id uint64) (*domain.Message, error) {
	m, err := repo.GetMessage(s.DB.WithContext(ctx), id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

// Stats returns a snapshot of the statistics singleton.
func (s *RelayService) Stats(ctx context.Context) (*domain.Statistics, error) {
	return repo.GetStatistics(s.DB.WithContext(ctx))
}

// Roster lists presence rows, optionally restricted to online stations.
func (s *RelayService) Roster(ctx context.Context, onlineOnly bool) ([]domain.Station, error) {
	return repo.ListStations(s.DB.WithContext(ctx), onlineOnly)
}

// MessagesPage returns a page of the message log for a station code (as
// sender or receiver) and the total count. It applies defaults for invalid
// page/pageSize.
func (s *RelayService) MessagesPage(ctx context.Context, code string, page, pageSize int) ([]domain.Message, int64, error) {
	norm := NormalizeCode(code)
	if norm == "" {
		return nil, 0, ErrEmptyStationCode
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	db := s.DB.WithContext(ctx)
	total, err := repo.CountMessagesForCode(db, norm)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesForCodePage(db, norm, offset, pageSize)
	return items, total, err
}

// ListPendingOutbound exposes the bridge's drain queue: Pending messages
// tagged OutboundToExternal, oldest first.
func (s *RelayService) ListPendingOutbound(ctx context.Context, limit int) ([]domain.Message, error) {
	return repo.ListPendingOutbound(s.DB.WithContext(ctx), limit)
}
