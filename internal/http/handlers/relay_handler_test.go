package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/atcnet/acars-relay/internal/domain"
	"github.com/atcnet/acars-relay/internal/http/middleware"
	"github.com/atcnet/acars-relay/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

// stubService lets each test dictate the service outcome without a database.
type stubService struct {
	loginErr   error
	logoutErr  error
	sendErr    error
	updateErr  error
	statsErr   error
	inbound    *domain.Message
	inboundErr error
	msgErr     error
}

func (s *stubService) Login(ctx context.Context, clientID, code string) (*domain.Station, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &domain.Station{ClientID: clientID, StationCode: code, IsOnline: true}, nil
}

func (s *stubService) Logout(ctx context.Context, clientID string) error { return s.logoutErr }

func (s *stubService) SendMessage(ctx context.Context, clientID, receiver, payload string, ext bool) (*domain.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &domain.Message{ID: 1, ReceiverCode: receiver, Payload: payload}, nil
}

func (s *stubService) ReceiveInbound(ctx context.Context, sender, receiver, payload, key string) (*domain.Message, error) {
	return s.inbound, s.inboundErr
}

func (s *stubService) UpdateMessageStatus(ctx context.Context, id uint64, status domain.MessageStatus) error {
	return s.updateErr
}

func (s *stubService) CleanupOldMessages(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubService) Stats(ctx context.Context) (*domain.Statistics, error) {
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return &domain.Statistics{}, nil
}

func (s *stubService) Roster(ctx context.Context, onlineOnly bool) ([]domain.Station, error) {
	return nil, nil
}

func (s *stubService) MessagesPage(ctx context.Context, code string, page, pageSize int) ([]domain.Message, int64, error) {
	return nil, 0, nil
}

func (s *stubService) Message(ctx context.Context, id uint64) (*domain.Message, error) {
	if s.msgErr != nil {
		return nil, s.msgErr
	}
	return &domain.Message{ID: id}, nil
}

func newStubRouter(svc RelayService) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ClientIdentity())
	h := New(svc)
	r.POST("/stations/login", h.Login)
	r.POST("/stations/logout", h.Logout)
	r.POST("/messages", h.SendMessage)
	r.GET("/messages/:id", h.GetMessage)
	r.PUT("/messages/:id/status", h.UpdateMessageStatus)
	r.POST("/relay/inbound", h.ReceiveInbound)
	r.GET("/stats", h.Stats)
	return r
}

func post(r *gin.Engine, path, clientID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		req.Header.Set(middleware.HeaderClientID, clientID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		want     int
		wantCode string
	}{
		{"conflict", services.ErrStationActive, http.StatusConflict, ErrCodeStationActive},
		{"empty code", services.ErrEmptyStationCode, http.StatusBadRequest, ErrCodeBadRequest},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newStubRouter(&stubService{loginErr: tc.err})
			w := post(r, "/stations/login", "c1", `{"station_code":"YMML"}`)
			if w.Code != tc.want {
				t.Fatalf("code = %d, want %d", w.Code, tc.want)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Fatalf("error code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestLogin_RejectsMalformedBody(t *testing.T) {
	r := newStubRouter(&stubService{})
	if w := post(r, "/stations/login", "c1", `{"station_code":`); w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
	// The binding requires a non-empty code before the service is reached.
	if w := post(r, "/stations/login", "c1", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestLogout_ErrorMapping(t *testing.T) {
	r := newStubRouter(&stubService{logoutErr: services.ErrNotLoggedIn})
	w := post(r, "/stations/logout", "c1", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != ErrCodeNotLoggedIn {
		t.Fatalf("error code = %q", resp.Code)
	}

	r = newStubRouter(&stubService{logoutErr: errors.New("boom")})
	if w := post(r, "/stations/logout", "c1", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	r := newStubRouter(&stubService{sendErr: services.ErrNotLoggedIn})
	w := post(r, "/messages", "c1", `{"receiver_code":"YSSY","payload":"hi"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}

	r = newStubRouter(&stubService{sendErr: errors.New("boom")})
	w = post(r, "/messages", "c1", `{"receiver_code":"YSSY","payload":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestGetMessage_ErrorMapping(t *testing.T) {
	r := newStubRouter(&stubService{msgErr: services.ErrMessageNotFound})
	req := httptest.NewRequest(http.MethodGet, "/messages/7", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d", w.Code)
	}

	r = newStubRouter(&stubService{msgErr: errors.New("boom")})
	req = httptest.NewRequest(http.MethodGet, "/messages/7", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", w.Code)
	}

	r = newStubRouter(&stubService{})
	req = httptest.NewRequest(http.MethodGet, "/messages/abc", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestUpdateMessageStatus_BadID(t *testing.T) {
	r := newStubRouter(&stubService{})
	req := httptest.NewRequest(http.MethodPut, "/messages/abc/status", strings.NewReader(`{"status":"delivered"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestReceiveInbound_InternalError(t *testing.T) {
	r := newStubRouter(&stubService{inboundErr: errors.New("boom")})
	w := post(r, "/relay/inbound", "", `{"sender_code":"KJFK","receiver_code":"YMML","payload":"X"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestStats_InternalError(t *testing.T) {
	r := newStubRouter(&stubService{statsErr: errors.New("boom")})
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", w.Code)
	}
}
