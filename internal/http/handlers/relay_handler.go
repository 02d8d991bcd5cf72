// Relay HTTP handlers.
//
// This file exposes REST endpoints for the relay operations:
//   - POST /stations/login           (claim a station code)
//   - POST /stations/logout          (release it)
//   - GET  /stations                 (roster)
//   - POST /messages                 (send from the caller's station)
//   - GET  /messages                 (history for a station code, paginated)
//   - PUT  /messages/{id}/status     (status overwrite)
//   - POST /relay/inbound            (bridge-only inbound injection)
//   - POST /maintenance/cleanup      (retention sweep, for external schedulers)
//   - GET  /stats                    (statistics snapshot)
//
// Handlers are transport-thin: they validate input, call the relay service,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atcnet/acars-relay/internal/domain"
	"github.com/atcnet/acars-relay/internal/http/middleware"
	"github.com/atcnet/acars-relay/internal/services"
	"github.com/atcnet/acars-relay/internal/utils"
)

// RelayService defines the relay operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RelayService interface {
	// Login claims a station code for the calling identity.
	Login(ctx context.Context, clientID, stationCode string) (*domain.Station, error)
	// Logout releases the caller's station.
	Logout(ctx context.Context, clientID string) error
	// SendMessage records an outgoing message from the caller's station.
	SendMessage(ctx context.Context, clientID, receiverCode, payload string, routeToExternal bool) (*domain.Message, error)
	// ReceiveInbound injects a message from the external relay network.
	ReceiveInbound(ctx context.Context, senderCode, receiverCode, payload, dedupeKey string) (*domain.Message, error)
	// UpdateMessageStatus overwrites the status of a message.
	UpdateMessageStatus(ctx context.Context, id uint64, status domain.MessageStatus) error
	// CleanupOldMessages purges messages past the retention window.
	CleanupOldMessages(ctx context.Context) (int64, error)
	// Stats returns the statistics snapshot.
	Stats(ctx context.Context) (*domain.Statistics, error)
	// Roster lists stations, optionally online only.
	Roster(ctx context.Context, onlineOnly bool) ([]domain.Station, error)
	// MessagesPage returns a page of the message log for a station code.
	MessagesPage(ctx context.Context, code string, page, pageSize int) ([]domain.Message, int64, error)
	// Message returns one message by id.
	Message(ctx context.Context, id uint64) (*domain.Message, error)
}

// Handlers groups the HTTP endpoints of the relay API.
type Handlers struct {
	svc RelayService
}

// New constructs a Handlers instance bound to the given relay service.
func New(svc RelayService) *Handlers {
	return &Handlers{svc: svc}
}

//
// DTOs
//

// LoginRequest is the JSON payload for claiming a station.
type LoginRequest struct {
	// StationCode is the position to claim; case-insensitive.
	StationCode string `json:"station_code" binding:"required,min=1,max=16" example:"YMML"`
}

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	ReceiverCode    string `json:"receiver_code" binding:"required,min=1,max=16" example:"YSSY"`
	Payload         string `json:"payload" binding:"required" example:"REQUEST PREDEP CLEARANCE"`
	RouteToExternal bool   `json:"route_to_external" example:"false"`
}

// InboundMessageRequest is the JSON payload the bridge posts for traffic
// arriving from the external network.
type InboundMessageRequest struct {
	SenderCode   string `json:"sender_code" binding:"required,min=1,max=16" example:"YSSY"`
	ReceiverCode string `json:"receiver_code" binding:"required,min=1,max=16" example:"YMML"`
	Payload      string `json:"payload" binding:"required" example:"ACK"`
}

// UpdateStatusRequest is the JSON payload for a status overwrite.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required" example:"delivered"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
}

// MessagesResponse is the paginated message-history envelope.
type MessagesResponse struct {
	Items      []domain.Message `json:"items"`
	Pagination Pagination       `json:"pagination"`
}

// CleanupResponse reports how many messages a sweep removed.
type CleanupResponse struct {
	Removed int64 `json:"removed"`
}

// requireClientID extracts the caller identity or writes a 401.
func requireClientID(c *gin.Context) (string, bool) {
	id, ok := middleware.ClientIDFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing "+middleware.HeaderClientID+" header")
		return "", false
	}
	return id, true
}

// Login godoc
// @Summary     Claim a station code
// @Tags        stations
// @Accept      json
// @Produce     json
// @Param       body body LoginRequest true "station to claim"
// @Success     200 {object} domain.Station
// @Failure     401 {object} ErrorResponse
// @Failure     409 {object} ErrorResponse
// @Router      /stations/login [post]
func (h *Handlers) Login(c *gin.Context) {
	clientID, authed := requireClientID(c)
	if !authed {
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	st, err := h.svc.Login(c.Request.Context(), clientID, req.StationCode)
	switch {
	case err == nil:
		middleware.CountRelayOp("login", "ok")
		ok(c, http.StatusOK, st)
	case errors.Is(err, services.ErrStationActive):
		middleware.CountRelayOp("login", "conflict")
		fail(c, http.StatusConflict, ErrCodeStationActive, err.Error())
	case errors.Is(err, services.ErrEmptyStationCode):
		middleware.CountRelayOp("login", "precondition")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		middleware.CountRelayOp("login", "error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "login failed")
	}
}

// Logout godoc
// @Summary     Release the caller's station
// @Tags        stations
// @Produce     json
// @Success     204
// @Failure     401 {object} ErrorResponse
// @Router      /stations/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	clientID, authed := requireClientID(c)
	if !authed {
		return
	}
	err := h.svc.Logout(c.Request.Context(), clientID)
	switch {
	case err == nil:
		middleware.CountRelayOp("logout", "ok")
		noContent(c)
	case errors.Is(err, services.ErrNotLoggedIn):
		middleware.CountRelayOp("logout", "precondition")
		fail(c, http.StatusUnauthorized, ErrCodeNotLoggedIn, err.Error())
	default:
		middleware.CountRelayOp("logout", "error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "logout failed")
	}
}

// ListStations godoc
// @Summary     List station presence rows
// @Tags        stations
// @Produce     json
// @Param       online query bool false "restrict to online stations"
// @Success     200 {array} domain.Station
// @Router      /stations [get]
func (h *Handlers) ListStations(c *gin.Context) {
	onlineOnly := c.Query("online") == "true" || c.Query("online") == "1"
	items, err := h.svc.Roster(c.Request.Context(), onlineOnly)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "list failed")
		return
	}
	ok(c, http.StatusOK, items)
}

// SendMessage godoc
// @Summary     Send a message from the caller's station
// @Tags        messages
// @Accept      json
// @Produce     json
// @Param       body body SendMessageRequest true "message to send"
// @Success     201 {object} domain.Message
// @Failure     401 {object} ErrorResponse
// @Router      /messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	clientID, authed := requireClientID(c)
	if !authed {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	m, err := h.svc.SendMessage(c.Request.Context(), clientID, req.ReceiverCode, req.Payload, req.RouteToExternal)
	switch {
	case err == nil:
		middleware.CountRelayOp("send_message", "ok")
		ok(c, http.StatusCreated, m)
	case errors.Is(err, services.ErrNotLoggedIn):
		middleware.CountRelayOp("send_message", "precondition")
		fail(c, http.StatusUnauthorized, ErrCodeNotLoggedIn, err.Error())
	case errors.Is(err, services.ErrEmptyStationCode):
		middleware.CountRelayOp("send_message", "precondition")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		middleware.CountRelayOp("send_message", "error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "send failed")
	}
}

// ListMessages godoc
// @Summary     List message history for a station code
// @Tags        messages
// @Produce     json
// @Param       station query string true "station code (sender or receiver)"
// @Param       page query int false "page number (1-based)"
// @Param       page_size query int false "page size"
// @Success     200 {object} MessagesResponse
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	code := c.Query("station")
	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("page_size"), 50)

	items, total, err := h.svc.MessagesPage(c.Request.Context(), code, page, pageSize)
	switch {
	case err == nil:
		ok(c, http.StatusOK, MessagesResponse{
			Items:      items,
			Pagination: Pagination{Page: page, PageSize: pageSize, TotalItems: total},
		})
	case errors.Is(err, services.ErrEmptyStationCode):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "station query parameter is required")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "list failed")
	}
}

// GetMessage godoc
// @Summary     Fetch one message by id
// @Tags        messages
// @Produce     json
// @Param       id path int true "message id"
// @Success     200 {object} domain.Message
// @Failure     404 {object} ErrorResponse
// @Router      /messages/{id} [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message id")
		return
	}

	m, err := h.svc.Message(c.Request.Context(), id)
	switch {
	case err == nil:
		ok(c, http.StatusOK, m)
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "fetch failed")
	}
}

// UpdateMessageStatus godoc
// @Summary     Overwrite a message's delivery status
// @Tags        messages
// @Accept      json
// @Produce     json
// @Param       id path int true "message id"
// @Param       body body UpdateStatusRequest true "new status"
// @Success     204
// @Failure     404 {object} ErrorResponse
// @Router      /messages/{id}/status [put]
func (h *Handlers) UpdateMessageStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message id")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	err = h.svc.UpdateMessageStatus(c.Request.Context(), id, domain.MessageStatus(req.Status))
	switch {
	case err == nil:
		middleware.CountRelayOp("update_status", "ok")
		noContent(c)
	case errors.Is(err, services.ErrMessageNotFound):
		middleware.CountRelayOp("update_status", "not_found")
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidStatus):
		middleware.CountRelayOp("update_status", "precondition")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		middleware.CountRelayOp("update_status", "error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "update failed")
	}
}

// ReceiveInbound godoc
// @Summary     Inject an inbound message from the external relay network
// @Description Bridge-only endpoint guarded by X-Relay-Token. An optional
// @Description X-Relay-Message-ID header dedupes redelivered blocks.
// @Tags        relay
// @Accept      json
// @Produce     json
// @Param       body body InboundMessageRequest true "inbound message"
// @Success     201 {object} domain.Message
// @Success     200 "duplicate delivery dropped"
// @Router      /relay/inbound [post]
func (h *Handlers) ReceiveInbound(c *gin.Context) {
	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	dedupeKey := c.GetHeader(middleware.HeaderRelayMessageID)

	m, err := h.svc.ReceiveInbound(c.Request.Context(), req.SenderCode, req.ReceiverCode, req.Payload, dedupeKey)
	switch {
	case err != nil:
		middleware.CountRelayOp("receive_inbound", "error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "inject failed")
	case m == nil:
		// Redelivery of a block already injected.
		middleware.CountRelayOp("receive_inbound", "duplicate")
		c.Status(http.StatusOK)
	default:
		middleware.CountRelayOp("receive_inbound", "ok")
		ok(c, http.StatusCreated, m)
	}
}

// Cleanup godoc
// @Summary     Purge messages past the retention window
// @Tags        maintenance
// @Produce     json
// @Success     200 {object} CleanupResponse
// @Router      /maintenance/cleanup [post]
func (h *Handlers) Cleanup(c *gin.Context) {
	removed, err := h.svc.CleanupOldMessages(c.Request.Context())
	if err != nil {
		middleware.CountRelayOp("cleanup", "error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "cleanup failed")
		return
	}
	middleware.CountRelayOp("cleanup", "ok")
	ok(c, http.StatusOK, CleanupResponse{Removed: removed})
}

// Stats godoc
// @Summary     Statistics snapshot
// @Tags        stats
// @Produce     json
// @Success     200 {object} domain.Statistics
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	s, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "stats unavailable")
		return
	}
	ok(c, http.StatusOK, s)
}
