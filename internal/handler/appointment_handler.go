package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/yoyaku/internal/middleware"
	"github.com/hitoshi/yoyaku/internal/model"
)

// AppointmentServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type AppointmentServiceInterface interface {
	// List はユーザーの予約一覧を返す。
	List(ctx context.Context, userID string) ([]*model.Appointment, error)
	// Create は予約を作成する。
	Create(ctx context.Context, userID, title string, scheduledAt time.Time, description string) (*model.Appointment, error)
	// Update は予約を更新する。
	Update(ctx context.Context, userID, appointmentID, title string, scheduledAt time.Time, description string) (*model.Appointment, error)
	// Delete は予約を削除する。
	Delete(ctx context.Context, userID, appointmentID string) error
}

// AppointmentHandler は予約管理のHTTPハンドラー。
type AppointmentHandler struct {
	service AppointmentServiceInterface
}

// NewAppointmentHandler はAppointmentHandlerを生成する。
func NewAppointmentHandler(service AppointmentServiceInterface) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// appointmentRequest は予約作成・更新リクエストのボディ。
type appointmentRequest struct {
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Description string    `json:"description"`
}

// appointmentResponse は予約情報のAPIレスポンス。
type appointmentResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Description  string    `json:"description"`
	ReminderSent bool      `json:"reminder_sent"`
}

// ListAppointments はユーザーの予約一覧を返す。
// GET /api/appointments
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	appointments, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]appointmentResponse, 0, len(appointments))
	for _, appt := range appointments {
		responses = append(responses, toAppointmentResponse(appt))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// CreateAppointment は予約作成を処理する。
// POST /api/appointments
func (h *AppointmentHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	appt, err := h.service.Create(r.Context(), userID, req.Title, req.ScheduledAt, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAppointmentResponse(appt))
}

// UpdateAppointment は予約更新を処理する。
// PUT /api/appointments/:id
func (h *AppointmentHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	appointmentID := chi.URLParam(r, "id")

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	appt, err := h.service.Update(r.Context(), userID, appointmentID, req.Title, req.ScheduledAt, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAppointmentResponse(appt))
}

// DeleteAppointment は予約削除を処理する。
// DELETE /api/appointments/:id
func (h *AppointmentHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	appointmentID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, appointmentID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toAppointmentResponse はmodel.AppointmentからAPIレスポンスに変換する。
func toAppointmentResponse(appt *model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:           appt.ID,
		Title:        appt.Title,
		ScheduledAt:  appt.ScheduledAt,
		Description:  appt.Description,
		ReminderSent: appt.ReminderSent,
	}
}
