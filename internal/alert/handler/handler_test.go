package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackguard/internal/alert"
	"trackguard/internal/alert/handler"
	"trackguard/pkg/domain"
	dErrors "trackguard/pkg/domain-errors"
)

// fakeService scripts alert service behavior per test.
type fakeService struct {
	status      *alert.StatusSummary
	get         func(id domain.AlertID) (*alert.Alert, error)
	history     func(q alert.HistoryQuery, limit int) ([]alert.Alert, error)
	acknowledge func(id domain.AlertID, by, notes string) (*alert.Alert, error)
	resolve     func(id domain.AlertID, by, notes string, tampering bool) (*alert.Alert, error)
}

func (f *fakeService) Status(context.Context) (*alert.StatusSummary, error) {
	return f.status, nil
}

func (f *fakeService) Get(_ context.Context, id domain.AlertID) (*alert.Alert, error) {
	return f.get(id)
}

func (f *fakeService) History(_ context.Context, q alert.HistoryQuery, limit int) ([]alert.Alert, error) {
	return f.history(q, limit)
}

func (f *fakeService) Acknowledge(_ context.Context, id domain.AlertID, by, notes string) (*alert.Alert, error) {
	return f.acknowledge(id, by, notes)
}

func (f *fakeService) Resolve(_ context.Context, id domain.AlertID, by, notes string, tampering bool) (*alert.Alert, error) {
	return f.resolve(id, by, notes, tampering)
}

func newRouter(svc *fakeService) http.Handler {
	r := chi.NewRouter()
	handler.New(svc, slog.Default()).Register(r)
	return r
}

func TestHandleStatus(t *testing.T) {
	svc := &fakeService{status: &alert.StatusSummary{
		TotalActive:  2,
		BySeverity:   map[alert.Severity]int{alert.SeverityHigh: 2},
		AlertsLast24: 5,
	}}

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		TotalActive  int `json:"total_active"`
		AlertsLast24 int `json:"alerts_last_24h"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.TotalActive)
	assert.Equal(t, 5, body.AlertsLast24)
}

func TestHandleGet(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeService{get: func(id domain.AlertID) (*alert.Alert, error) {
			assert.Equal(t, domain.AlertID("alert_1"), id)
			return &alert.Alert{ID: id, Severity: alert.SeverityHigh, Status: alert.StatusActive}, nil
		}}

		rec := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert/alert_1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			AlertID string `json:"alert_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "alert_1", body.AlertID)
	})

	t.Run("unknown alert maps to 404", func(t *testing.T) {
		svc := &fakeService{get: func(domain.AlertID) (*alert.Alert, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
		}}

		rec := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alert/alert_x", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleHistory(t *testing.T) {
	t.Run("filters and limit are passed through", func(t *testing.T) {
		svc := &fakeService{history: func(q alert.HistoryQuery, limit int) ([]alert.Alert, error) {
			assert.Equal(t, domain.ZoneID("ZONE-001"), q.ZoneID)
			assert.Equal(t, alert.StatusResolved, q.Status)
			assert.Equal(t, 5, limit)
			return []alert.Alert{{ID: "alert_1", Status: alert.StatusResolved}}, nil
		}}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/alert/history?zone_id=ZONE-001&status=resolved&limit=5", nil)
		newRouter(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count)
	})

	t.Run("non-numeric limit is a bad request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/alert/history?limit=lots", nil)
		newRouter(&fakeService{}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleAcknowledge(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeService{acknowledge: func(id domain.AlertID, by, notes string) (*alert.Alert, error) {
			assert.Equal(t, domain.AlertID("alert_1"), id)
			assert.Equal(t, "op-7", by)
			return &alert.Alert{ID: id, Status: alert.StatusAcknowledged}, nil
		}}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alert/acknowledge",
			strings.NewReader(`{"alert_id":"alert_1","acknowledged_by":"op-7"}`))
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing alert_id is a bad request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alert/acknowledge",
			strings.NewReader(`{"acknowledged_by":"op-7"}`))
		newRouter(&fakeService{}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown alert maps to 404", func(t *testing.T) {
		svc := &fakeService{acknowledge: func(domain.AlertID, string, string) (*alert.Alert, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
		}}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alert/acknowledge",
			strings.NewReader(`{"alert_id":"alert_x","acknowledged_by":"op-7"}`))
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("resolved alert maps to 409", func(t *testing.T) {
		svc := &fakeService{acknowledge: func(domain.AlertID, string, string) (*alert.Alert, error) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "alert is already resolved")
		}}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alert/acknowledge",
			strings.NewReader(`{"alert_id":"alert_1","acknowledged_by":"op-7"}`))
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleResolve(t *testing.T) {
	t.Run("verdict is required", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alert/resolve",
			strings.NewReader(`{"alert_id":"alert_1","resolved_by":"op-7"}`))
		newRouter(&fakeService{}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("verdict false is still a valid verdict", func(t *testing.T) {
		svc := &fakeService{resolve: func(id domain.AlertID, by, notes string, tampering bool) (*alert.Alert, error) {
			assert.False(t, tampering)
			return &alert.Alert{ID: id, Status: alert.StatusResolved}, nil
		}}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/alert/resolve",
			strings.NewReader(`{"alert_id":"alert_1","resolved_by":"op-7","notes":"false alarm","was_actual_tampering":false}`))
		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
