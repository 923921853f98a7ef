package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"cliquesaude/internal/booking"
	"cliquesaude/internal/config"
	"cliquesaude/internal/database"
	"cliquesaude/internal/domain"
	"cliquesaude/internal/models"
	"cliquesaude/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db      *database.DB
	server  *HTTPServer
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg config.APIConfig, opts booking.Options) *testEnv {
	return newTestEnvSessions(t, cfg, opts, nil)
}

func newTestEnvSessions(t *testing.T, cfg config.APIConfig, opts booking.Options, sessions domain.SessionRepository) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if !opts.AllowSlotOverlap {
		require.NoError(t, db.EnforceSlotUniqueness())
	}

	svc := booking.NewService(db, nil, nil, opts, &logger)
	srv := NewHTTPServer(cfg, svc, db, sessions, &logger)
	return &testEnv{db: db, server: srv, handler: srv.server.Handler}
}

func openConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func validBookingBody() map[string]interface{} {
	return map[string]interface{}{
		"patient_name":  "Maria Silva",
		"patient_email": "maria@example.com",
		"items": []map[string]interface{}{
			{
				"professional_id":  "p1",
				"appointment_date": "2025-12-01",
				"appointment_time": "10:00",
				"price":            150,
			},
		},
	}
}

func TestCreateAppointmentSuccess(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{AllowSlotOverlap: true})

	rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	appointment := body["appointment"].(map[string]interface{})
	assert.Equal(t, float64(150), appointment["total_amount"])
	assert.Equal(t, models.StatusConfirmed, appointment["status"])
	assert.Equal(t, models.PaymentPaid, appointment["payment_status"])

	items := appointment["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "p1", item["professional_id"])
	assert.Equal(t, float64(150), item["price"])
	assert.Equal(t, models.TypePresencial, item["appointment_type"])
}

func TestCreateAppointmentValidation(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{AllowSlotOverlap: true})

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing name", func(b map[string]interface{}) { delete(b, "patient_name") }},
		{"missing email", func(b map[string]interface{}) { delete(b, "patient_email") }},
		{"no items", func(b map[string]interface{}) { b["items"] = []interface{}{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBookingBody()
			tt.mutate(body)

			rec := env.do(t, http.MethodPost, "/api/v1/appointments", body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Dados obrigatórios faltando", decodeBody(t, rec)["error"])
		})
	}
}

func TestCreateAppointmentBadJSON(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{AllowSlotOverlap: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAppointmentMalformedPriceCoerced(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{AllowSlotOverlap: true})

	body := validBookingBody()
	body["items"] = []map[string]interface{}{
		{"professional_id": "p1", "appointment_date": "2025-12-01", "appointment_time": "10:00", "price": 100},
		{"professional_id": "p2", "appointment_date": "2025-12-01", "appointment_time": "11:00", "price": "bogus"},
	}

	rec := env.do(t, http.MethodPost, "/api/v1/appointments", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	appointment := decodeBody(t, rec)["appointment"].(map[string]interface{})
	assert.Equal(t, float64(100), appointment["total_amount"])
}

func TestCreateAppointmentSlotConflict(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{})

	rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "Horário indisponível")
}

func TestListAppointmentsFilter(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{AllowSlotOverlap: true})

	rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("All", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["appointments"], 1)
	})

	t.Run("ScheduledIncludesConfirmed", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments?status=scheduled", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["appointments"], 1)
	})

	t.Run("NoMatch", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments?status=cancelled", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeBody(t, rec)["appointments"])
	})

	t.Run("InvalidValue", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments?status=banana", nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Filtro de status inválido", decodeBody(t, rec)["error"])
	})

	t.Run("InvalidTokenInList", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments?status=pending,banana", nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Filtro de status inválido: banana", decodeBody(t, rec)["error"])
	})

	t.Run("ScheduledInsideList", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments?status=scheduled,pending", nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Filtro de status inválido: scheduled", decodeBody(t, rec)["error"])
	})
}

func TestUpdateAndDeleteAppointment(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{AllowSlotOverlap: true})

	rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["appointment"].(map[string]interface{})["id"].(string)

	t.Run("PatchStatus", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/v1/appointments/"+id,
			map[string]interface{}{"status": "cancelled"}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		appointment := decodeBody(t, rec)["appointment"].(map[string]interface{})
		assert.Equal(t, models.StatusCancelled, appointment["status"])
		assert.Equal(t, models.PaymentPaid, appointment["payment_status"])
	})

	t.Run("PatchMissingRow", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/v1/appointments/ghost",
			map[string]interface{}{"status": "cancelled"}, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("PatchNoFields", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/v1/appointments/"+id, map[string]interface{}{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/appointments/"+id, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["success"])

		rec = env.do(t, http.MethodGet, "/api/v1/appointments/"+id, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/appointments/ghost", nil, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{AllowSlotOverlap: true})

	rec := env.do(t, http.MethodPost, "/api/v1/specialties",
		map[string]interface{}{"id": "s1", "name": "Cardiologia"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/professionals",
		map[string]interface{}{"id": "p1", "name": "Dr. Souza", "specialty_id": "s1", "active": true}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/clinics",
		map[string]interface{}{"id": "c1", "name": "Clínica Central", "active": true}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("ListProfessionals", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/professionals", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["professionals"], 1)
	})

	t.Run("FilterBySpecialty", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/professionals?specialty_id=other", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeBody(t, rec)["professionals"])
	})

	t.Run("RejectUnnamed", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/clinics", map[string]interface{}{"id": "c2"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("DeactivateProfessional", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/professionals/p1", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/professionals", nil, nil)
		assert.Empty(t, decodeBody(t, rec)["professionals"])
	})
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, openConfig(), booking.Options{AllowSlotOverlap: true})

	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	cfg := openConfig()
	cfg.Auth = config.APIAuthConfig{
		HeaderAPIKey: "x-api-key",
		HeaderExtra:  "x-api-extra",
		APIKeys: []config.APIClientKey{
			{Key: "reader-key", Extra: "reader-extra", Name: "reader", Permissions: []string{"read:appointments"}},
			{Key: "writer-key", Extra: "writer-extra", Name: "writer", Permissions: []string{"read:appointments", "write:appointments"}},
		},
	}
	env := newTestEnv(t, cfg, booking.Options{AllowSlotOverlap: true})

	readerHeaders := map[string]string{"x-api-key": "reader-key", "x-api-extra": "reader-extra"}
	writerHeaders := map[string]string{"x-api-key": "writer-key", "x-api-extra": "writer-extra"}

	t.Run("MissingHeaders", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("WrongExtra", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments", nil,
			map[string]string{"x-api-key": "reader-key", "x-api-extra": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ReadAllowed", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments", nil, readerHeaders)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("WriteForbiddenForReader", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(), readerHeaders)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("WriteAllowedForWriter", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(), writerHeaders)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("HealthzBypasses", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthExplicitlyDisabled(t *testing.T) {
	disabled := false
	cfg := openConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:      &disabled,
		HeaderAPIKey: "x-api-key",
		HeaderExtra:  "x-api-extra",
		APIKeys: []config.APIClientKey{
			{Key: "reader-key", Extra: "reader-extra", Name: "reader", Permissions: []string{"read:appointments"}},
		},
	}
	env := newTestEnv(t, cfg, booking.Options{AllowSlotOverlap: true})

	rec := env.do(t, http.MethodGet, "/api/v1/appointments", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionResolution(t *testing.T) {
	sessions := repository.NewMemorySessionRepository(time.Hour)
	env := newTestEnvSessions(t, openConfig(), booking.Options{AllowSlotOverlap: true}, sessions)
	ctx := context.Background()

	t.Run("CreatedOnFirstWrite", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(),
			map[string]string{"x-subject-id": "u1"})
		require.Equal(t, http.StatusCreated, rec.Code)

		session, err := sessions.GetSession(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, models.RolePaciente, session.Role)
	})

	t.Run("RoleHeaderHonored", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(),
			map[string]string{"x-subject-id": "admin-1", "x-subject-role": models.RoleAdmin})
		require.Equal(t, http.StatusCreated, rec.Code)

		session, err := sessions.GetSession(ctx, "admin-1")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, models.RoleAdmin, session.Role)
	})

	t.Run("RoleChangeInvalidatesCachedSession", func(t *testing.T) {
		require.NoError(t, sessions.SetSession(ctx, &models.SessionContext{
			SubjectID: "u2", Role: models.RolePaciente, IssuedAt: time.Now(),
		}))

		rec := env.do(t, http.MethodPost, "/api/v1/appointments", validBookingBody(),
			map[string]string{"x-subject-id": "u2", "x-subject-role": models.RoleParceiro})
		require.Equal(t, http.StatusCreated, rec.Code)

		session, err := sessions.GetSession(ctx, "u2")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, models.RoleParceiro, session.Role)
	})

	t.Run("InvalidRoleHeaderFallsBack", func(t *testing.T) {
		session := env.server.resolveSession(ctx, "u3", "superuser")
		require.NotNil(t, session)
		assert.Equal(t, models.RolePaciente, session.Role)
	})
}

func TestSessionSignOut(t *testing.T) {
	sessions := repository.NewMemorySessionRepository(time.Hour)
	env := newTestEnvSessions(t, openConfig(), booking.Options{AllowSlotOverlap: true}, sessions)
	ctx := context.Background()

	require.NoError(t, sessions.SetSession(ctx, &models.SessionContext{
		SubjectID: "u1", Role: models.RolePaciente, IssuedAt: time.Now(),
	}))

	rec := env.do(t, http.MethodDelete, "/api/v1/sessions/u1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	session, err := sessions.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, session)

	t.Run("MissingID", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/sessions/", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("WrongMethod", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/sessions/u1", nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRateLimitPerKey(t *testing.T) {
	cfg := openConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}
	env := newTestEnv(t, cfg, booking.Options{AllowSlotOverlap: true})

	headers := map[string]string{"x-api-key": "k1"}
	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := env.do(t, http.MethodGet, "/api/v1/appointments", nil, headers)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}
