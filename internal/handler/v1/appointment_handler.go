package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/domain/appointment"
	"github.com/medicab/scheduler/internal/middleware"
	"github.com/medicab/scheduler/internal/service"
	"github.com/medicab/scheduler/pkg/metrics"
	"go.uber.org/zap"
)

type AppointmentHandler struct {
	svc       *service.AppointmentService
	collector *metrics.Collector
	log       *zap.Logger
}

func NewAppointmentHandler(svc *service.AppointmentService, collector *metrics.Collector, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, collector: collector, log: log}
}

// appointmentView is the wire shape of an appointment. The is_* fields
// are recomputed on every read, never persisted.
type appointmentView struct {
	ID           uuid.UUID          `json:"id"`
	PatientID    int64              `json:"patient_id"`
	DoctorID     int64              `json:"doctor_id"`
	StartAt      time.Time          `json:"start_at"`
	EndAt        time.Time          `json:"end_at"`
	DurationMins int                `json:"duration_mins"`
	Status       appointment.Status `json:"status"`
	Reason       string             `json:"reason,omitempty"`
	Notes        string             `json:"notes,omitempty"`

	IsUpcoming    bool `json:"is_upcoming"`
	IsToday       bool `json:"is_today"`
	IsModifiable  bool `json:"is_modifiable"`
	IsCancellable bool `json:"is_cancellable"`
	IsOverdue     bool `json:"is_overdue"`

	PossibleTransitions []appointment.Status `json:"possible_transitions"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newAppointmentView(a *appointment.Appointment) appointmentView {
	return appointmentView{
		ID:                  a.ID,
		PatientID:           a.PatientID,
		DoctorID:            a.DoctorID,
		StartAt:             a.StartAt,
		EndAt:               a.EndsAt(),
		DurationMins:        a.DurationMins,
		Status:              a.Status,
		Reason:              a.Reason,
		Notes:               a.Notes,
		IsUpcoming:          a.IsUpcoming(),
		IsToday:             a.IsToday(),
		IsModifiable:        a.IsModifiable(),
		IsCancellable:       a.IsCancellable(),
		IsOverdue:           a.IsOverdue(),
		PossibleTransitions: appointment.PossibleTransitions(a.Status),
		CancelledAt:         a.CancelledAt,
		CancellationReason:  a.CancellationReason,
		CompletedAt:         a.CompletedAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func appointmentViews(list []*appointment.Appointment) []appointmentView {
	views := make([]appointmentView, 0, len(list))
	for _, a := range list {
		views = append(views, newAppointmentView(a))
	}
	return views
}

type createAppointmentRequest struct {
	PatientID    int64     `json:"patient_id" binding:"required"`
	DoctorID     int64     `json:"doctor_id" binding:"required"`
	StartAt      time.Time `json:"start_at" binding:"required"`
	DurationMins int       `json:"duration_mins"`
	Reason       string    `json:"reason"`
	Notes        string    `json:"notes"`
}

func (h *AppointmentHandler) Create(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req createAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Create(c.Request.Context(), &appointment.CreateCommand{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		StartAt:      req.StartAt,
		DurationMins: req.DurationMins,
		Reason:       req.Reason,
		Notes:        req.Notes,
		CreatedBy:    caller.UserID,
	}, caller)
	if err != nil {
		h.collector.BookingsTotal.WithLabelValues("create", "error").Inc()
		respondServiceError(c, err)
		return
	}

	h.collector.BookingsTotal.WithLabelValues("create", "success").Inc()
	respondCreated(c, newAppointmentView(a))
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.Get(c.Request.Context(), id, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, newAppointmentView(a))
}

func (h *AppointmentHandler) List(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	q := &appointment.ListQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	}

	var ok bool
	if q.PatientID, ok = parseQueryInt64(c, "patient_id"); !ok {
		return
	}
	if q.DoctorID, ok = parseQueryInt64(c, "doctor_id"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		st := appointment.Status(raw)
		if !st.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status: " + raw})
			return
		}
		q.Status = &st
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from: must be RFC3339"})
			return
		}
		q.DateFrom = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to: must be RFC3339"})
			return
		}
		q.DateTo = &t
	}

	page, err := h.svc.List(c.Request.Context(), q, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"appointments": appointmentViews(page.Appointments),
		"total_count":  page.TotalCount,
		"page":         page.Page,
		"page_size":    page.PageSize,
		"total_pages":  page.TotalPages,
	})
}

type rescheduleRequest struct {
	StartAt      time.Time `json:"start_at" binding:"required"`
	DurationMins *int      `json:"duration_mins"`
}

func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req rescheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Reschedule(c.Request.Context(), id, &appointment.RescheduleCommand{
		StartAt:      req.StartAt,
		DurationMins: req.DurationMins,
		UpdatedBy:    caller.UserID,
	}, caller)
	if err != nil {
		h.collector.BookingsTotal.WithLabelValues("reschedule", "error").Inc()
		respondServiceError(c, err)
		return
	}

	h.collector.BookingsTotal.WithLabelValues("reschedule", "success").Inc()
	respondOK(c, newAppointmentView(a))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Cancel(c.Request.Context(), id, &appointment.CancelCommand{
		Reason:      req.Reason,
		CancelledBy: caller.UserID,
	}, caller)
	if err != nil {
		h.collector.BookingsTotal.WithLabelValues("cancel", "error").Inc()
		respondServiceError(c, err)
		return
	}

	h.collector.BookingsTotal.WithLabelValues("cancel", "success").Inc()
	respondOK(c, newAppointmentView(a))
}

type transitionRequest struct {
	Status appointment.Status `json:"status" binding:"required"`
}

func (h *AppointmentHandler) TransitionStatus(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status: " + string(req.Status)})
		return
	}

	a, err := h.svc.TransitionStatus(c.Request.Context(), id, req.Status, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, newAppointmentView(a))
}

func (h *AppointmentHandler) AvailableSlots(c *gin.Context) {
	doctorID, ok := parseQueryInt64(c, "doctor_id")
	if !ok {
		return
	}
	if doctorID == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "doctor_id is required"})
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid date: must be YYYY-MM-DD"})
		return
	}

	slotDuration := time.Duration(parseQueryInt(c, "slot_mins", 0)) * time.Minute

	h.collector.SlotQueriesTotal.Inc()
	slots, err := h.svc.AvailableSlots(c.Request.Context(), *doctorID, date, slotDuration)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"doctor_id": *doctorID,
		"date":      date.Format("2006-01-02"),
		"slots":     slots,
	})
}

type conflictCheckRequest struct {
	PatientID    int64     `json:"patient_id" binding:"required"`
	DoctorID     int64     `json:"doctor_id" binding:"required"`
	StartAt      time.Time `json:"start_at" binding:"required"`
	DurationMins int       `json:"duration_mins"`
}

func (h *AppointmentHandler) CheckConflicts(c *gin.Context) {
	var req conflictCheckRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.CheckConflicts(c.Request.Context(), req.DoctorID, req.PatientID, req.StartAt, req.DurationMins)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if result.HasConflicts {
		h.collector.ConflictsDetectedTotal.Inc()
	}

	respondOK(c, gin.H{
		"has_conflicts": result.HasConflicts,
		"conflicting":   appointmentViews(result.Conflicting),
		"suggested":     result.Suggested,
	})
}
