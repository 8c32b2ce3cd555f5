package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/yoyaku/internal/model"
)

// --- モック定義 ---

// mockAppointmentService はAppointmentServiceInterfaceのモック実装。
type mockAppointmentService struct {
	listFn   func(ctx context.Context, userID string) ([]*model.Appointment, error)
	createFn func(ctx context.Context, userID, title string, scheduledAt time.Time, description string) (*model.Appointment, error)
	updateFn func(ctx context.Context, userID, appointmentID, title string, scheduledAt time.Time, description string) (*model.Appointment, error)
	deleteFn func(ctx context.Context, userID, appointmentID string) error
}

func (m *mockAppointmentService) List(ctx context.Context, userID string) ([]*model.Appointment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAppointmentService) Create(ctx context.Context, userID, title string, scheduledAt time.Time, description string) (*model.Appointment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, title, scheduledAt, description)
	}
	return nil, nil
}

func (m *mockAppointmentService) Update(ctx context.Context, userID, appointmentID, title string, scheduledAt time.Time, description string) (*model.Appointment, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, appointmentID, title, scheduledAt, description)
	}
	return nil, nil
}

func (m *mockAppointmentService) Delete(ctx context.Context, userID, appointmentID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, appointmentID)
	}
	return nil
}

// --- GET /api/appointments テスト ---

func TestAppointmentHandler_ListAppointments_Success(t *testing.T) {
	scheduledAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := &mockAppointmentService{
		listFn: func(ctx context.Context, userID string) ([]*model.Appointment, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return []*model.Appointment{
				{ID: "appt-1", Title: "歯科検診", ScheduledAt: scheduledAt},
				{ID: "appt-2", Title: "面談", ScheduledAt: scheduledAt.Add(time.Hour)},
			}, nil
		},
	}

	h := NewAppointmentHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListAppointments(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("appointments = %d, want 2", len(result))
	}
	if result[0]["title"] != "歯科検診" {
		t.Errorf("title = %v, want %q", result[0]["title"], "歯科検診")
	}
}

func TestAppointmentHandler_ListAppointments_EmptyReturnsArray(t *testing.T) {
	h := NewAppointmentHandler(&mockAppointmentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListAppointments(w, req)

	// 空でもnullではなく空配列を返す
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("body = %q, want %q", got, "[]")
	}
}

func TestAppointmentHandler_ListAppointments_Unauthorized(t *testing.T) {
	h := NewAppointmentHandler(&mockAppointmentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	w := httptest.NewRecorder()

	h.ListAppointments(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- POST /api/appointments テスト ---

func TestAppointmentHandler_CreateAppointment_Success(t *testing.T) {
	svc := &mockAppointmentService{
		createFn: func(ctx context.Context, userID, title string, scheduledAt time.Time, description string) (*model.Appointment, error) {
			if title != "歯科検診" {
				t.Errorf("title = %q, want %q", title, "歯科検診")
			}
			return &model.Appointment{
				ID:          "appt-1",
				UserID:      userID,
				Title:       title,
				ScheduledAt: scheduledAt,
				Description: description,
			}, nil
		},
	}

	h := NewAppointmentHandler(svc)

	body := `{"title": "歯科検診", "scheduled_at": "2026-09-01T10:00:00Z", "description": "定期検診"}`
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateAppointment(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "appt-1" {
		t.Errorf("id = %v, want %q", result["id"], "appt-1")
	}
	if result["reminder_sent"] != false {
		t.Errorf("reminder_sent = %v, want false", result["reminder_sent"])
	}
}

func TestAppointmentHandler_CreateAppointment_LimitExceeded(t *testing.T) {
	h := NewAppointmentHandler(&mockAppointmentService{
		createFn: func(ctx context.Context, userID, title string, scheduledAt time.Time, description string) (*model.Appointment, error) {
			return nil, model.NewAppointmentLimitError()
		},
	})

	body := `{"title": "歯科検診", "scheduled_at": "2026-09-01T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateAppointment(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeAppointmentLimit {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeAppointmentLimit)
	}
}

func TestAppointmentHandler_CreateAppointment_InvalidJSON(t *testing.T) {
	h := NewAppointmentHandler(&mockAppointmentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewBufferString("{invalid"))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateAppointment(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- PUT /api/appointments/:id テスト ---

func TestAppointmentHandler_UpdateAppointment_Success(t *testing.T) {
	svc := &mockAppointmentService{
		updateFn: func(ctx context.Context, userID, appointmentID, title string, scheduledAt time.Time, description string) (*model.Appointment, error) {
			if appointmentID != "appt-1" {
				t.Errorf("appointmentID = %q, want %q", appointmentID, "appt-1")
			}
			return &model.Appointment{
				ID:          appointmentID,
				Title:       title,
				ScheduledAt: scheduledAt,
			}, nil
		},
	}

	h := NewAppointmentHandler(svc)

	body := `{"title": "時間変更", "scheduled_at": "2026-09-02T14:00:00Z"}`
	req := httptest.NewRequest(http.MethodPut, "/api/appointments/appt-1", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "appt-1")
	w := httptest.NewRecorder()

	h.UpdateAppointment(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAppointmentHandler_UpdateAppointment_NotFound(t *testing.T) {
	h := NewAppointmentHandler(&mockAppointmentService{
		updateFn: func(ctx context.Context, userID, appointmentID, title string, scheduledAt time.Time, description string) (*model.Appointment, error) {
			return nil, model.NewAppointmentNotFoundError(appointmentID)
		},
	})

	body := `{"title": "時間変更", "scheduled_at": "2026-09-02T14:00:00Z"}`
	req := httptest.NewRequest(http.MethodPut, "/api/appointments/missing", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.UpdateAppointment(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- DELETE /api/appointments/:id テスト ---

func TestAppointmentHandler_DeleteAppointment_Success(t *testing.T) {
	var deletedID string
	h := NewAppointmentHandler(&mockAppointmentService{
		deleteFn: func(ctx context.Context, userID, appointmentID string) error {
			deletedID = appointmentID
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/appointments/appt-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "appt-1")
	w := httptest.NewRecorder()

	h.DeleteAppointment(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deletedID != "appt-1" {
		t.Errorf("deleted ID = %q, want %q", deletedID, "appt-1")
	}
}

func TestAppointmentHandler_DeleteAppointment_NotFound(t *testing.T) {
	h := NewAppointmentHandler(&mockAppointmentService{
		deleteFn: func(ctx context.Context, userID, appointmentID string) error {
			return model.NewAppointmentNotFoundError(appointmentID)
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/appointments/missing", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.DeleteAppointment(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
