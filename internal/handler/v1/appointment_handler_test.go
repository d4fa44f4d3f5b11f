package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/config"
	"github.com/medicab/scheduler/internal/domain/audit"
	"github.com/medicab/scheduler/internal/notify"
	"github.com/medicab/scheduler/internal/repository/memory"
	"github.com/medicab/scheduler/internal/service"
	"github.com/medicab/scheduler/pkg/auth"
	"github.com/medicab/scheduler/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// One collector per test binary: prometheus registration is global.
var testCollector = metrics.NewCollector("scheduler_handler_test")

type nopAuditRepo struct{}

func (nopAuditRepo) Create(context.Context, *audit.Log) error { return nil }

type testEnv struct {
	router *gin.Engine
	jwt    *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Name: "scheduler-api", Environment: "test", Version: "test"},
		JWT: config.JWTConfig{
			Secret:         "handler-test-secret-0123456789abcd",
			Issuer:         "medicab-identity",
			AccessTokenTTL: time.Hour,
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000},
		Schedule: config.ScheduleConfig{
			Timezone:         "UTC",
			OpeningTime:      "08:00",
			ClosingTime:      "18:00",
			SlotDurationMins: 30,
			InitialStatus:    "confirmed",
			SuggestionDays:   7,
			SuggestionLimit:  3,
		},
	}

	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: fmt.Sprintf("handler_audit_dropped_%d", time.Now().UnixNano())})
	auditSvc := service.NewAuditService(nopAuditRepo{}, dropped, zap.NewNop())
	t.Cleanup(auditSvc.Shutdown)

	svc, err := service.NewAppointmentService(
		memory.NewStore(), memory.NewTimeOffStore(), auditSvc, notify.Nop{}, cfg.Schedule, zap.NewNop(),
	)
	require.NoError(t, err)

	jwtManager := auth.NewJWTManager(cfg.JWT)
	router := NewRouter(RouterDeps{
		Config:       cfg,
		Logger:       zap.NewNop(),
		Collector:    testCollector,
		JWTManager:   jwtManager,
		Appointments: NewAppointmentHandler(svc, testCollector, zap.NewNop()),
	})

	return &testEnv{router: router, jwt: jwtManager}
}

func (e *testEnv) token(t *testing.T, role string, patientID *int64) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(&auth.Claims{UserID: uuid.New(), Role: role, PatientID: patientID})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// nextOpenDay is tomorrow or later, skipping Sundays, at the given hour UTC.
func nextOpenDay(hour int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/appointments", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "doctor", nil)
	start := nextOpenDay(10)

	w := env.do(t, http.MethodPost, "/api/v1/appointments", token, gin.H{
		"patient_id": 101,
		"doctor_id":  7,
		"start_at":   start.Format(time.RFC3339),
		"reason":     "checkup",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data appointmentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.Data.ID)
	assert.Equal(t, "confirmed", string(resp.Data.Status))
	assert.Equal(t, 30, resp.Data.DurationMins)
	assert.True(t, resp.Data.IsUpcoming)
	assert.True(t, resp.Data.IsModifiable)
	assert.True(t, start.Add(30*time.Minute).Equal(resp.Data.EndAt))
	assert.NotEmpty(t, resp.Data.PossibleTransitions)
}

func TestCreateConflictReturns409(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "doctor", nil)
	start := nextOpenDay(10)

	body := gin.H{
		"patient_id": 101,
		"doctor_id":  7,
		"start_at":   start.Format(time.RFC3339),
	}
	w := env.do(t, http.MethodPost, "/api/v1/appointments", token, body)
	require.Equal(t, http.StatusCreated, w.Code)

	body["patient_id"] = 102
	w = env.do(t, http.MethodPost, "/api/v1/appointments", token, body)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "SCHEDULE_CONFLICT")
}

func TestCreateValidationReturns400(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "doctor", nil)

	w := env.do(t, http.MethodPost, "/api/v1/appointments", token, gin.H{
		"patient_id": 101,
		"doctor_id":  7,
		"start_at":   time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRescheduleAndCancelEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "doctor", nil)
	start := nextOpenDay(10)

	w := env.do(t, http.MethodPost, "/api/v1/appointments", token, gin.H{
		"patient_id": 101,
		"doctor_id":  7,
		"start_at":   start.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data appointmentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID

	newStart := start.Add(2 * time.Hour)
	w = env.do(t, http.MethodPut, "/api/v1/appointments/"+id.String()+"/reschedule", token, gin.H{
		"start_at": newStart.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var moved struct {
		Data appointmentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.True(t, newStart.Equal(moved.Data.StartAt), "expected %s, got %s", newStart, moved.Data.StartAt)

	w = env.do(t, http.MethodPost, "/api/v1/appointments/"+id.String()+"/cancel", token, gin.H{
		"reason": "patient request",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var cancelled struct {
		Data appointmentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, "cancelled", string(cancelled.Data.Status))

	// Cancelling again hits the closed lifecycle.
	w = env.do(t, http.MethodPost, "/api/v1/appointments/"+id.String()+"/cancel", token, gin.H{})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStatusTransitionRequiresStaffRole(t *testing.T) {
	env := newTestEnv(t)
	patientID := int64(101)
	patientToken := env.token(t, "patient", &patientID)

	w := env.do(t, http.MethodPost, "/api/v1/appointments/"+uuid.NewString()+"/status", patientToken, gin.H{
		"status": "completed",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetUnknownAppointmentReturns404(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "doctor", nil)

	w := env.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailableSlotsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "doctor", nil)
	day := nextOpenDay(0)

	w := env.do(t, http.MethodGet,
		"/api/v1/schedule/slots?doctor_id=7&date="+day.Format("2006-01-02"), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			DoctorID int64 `json:"doctor_id"`
			Slots    []struct {
				Start     time.Time `json:"start"`
				Available bool      `json:"available"`
			} `json:"slots"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Data.DoctorID)
	assert.Len(t, resp.Data.Slots, 19)

	w = env.do(t, http.MethodGet, "/api/v1/schedule/slots?date=2026-09-14", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "doctor_id is mandatory")
}

func TestConflictProbeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "doctor", nil)
	start := nextOpenDay(10)

	w := env.do(t, http.MethodPost, "/api/v1/appointments", token, gin.H{
		"patient_id": 101,
		"doctor_id":  7,
		"start_at":   start.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/schedule/conflicts", token, gin.H{
		"patient_id": 102,
		"doctor_id":  7,
		"start_at":   start.Add(15 * time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			HasConflicts bool              `json:"has_conflicts"`
			Conflicting  []appointmentView `json:"conflicting"`
			Suggested    []any             `json:"suggested"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.HasConflicts)
	assert.Len(t, resp.Data.Conflicting, 1)
	assert.NotEmpty(t, resp.Data.Suggested)
}

func TestPatientScopedList(t *testing.T) {
	env := newTestEnv(t)
	staff := env.token(t, "doctor", nil)
	start := nextOpenDay(10)

	for i, patient := range []int{101, 202} {
		w := env.do(t, http.MethodPost, "/api/v1/appointments", staff, gin.H{
			"patient_id": patient,
			"doctor_id":  7,
			"start_at":   start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	own := int64(101)
	patientToken := env.token(t, "patient", &own)
	w := env.do(t, http.MethodGet, "/api/v1/appointments", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Appointments []appointmentView `json:"appointments"`
			TotalCount   int64             `json:"total_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Appointments, 1)
	assert.Equal(t, int64(101), resp.Data.Appointments[0].PatientID)
}
