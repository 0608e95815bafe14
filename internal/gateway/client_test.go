package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/errors"
	"github.com/medisched/scheduling-client/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:      srv.URL,
		RetryBackoff: time.Millisecond,
		RateLimit:    1000,
		RateBurst:    1000,
	}, logger.Nop(), nil)
	return client, srv
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func successEnvelope(data interface{}) map[string]interface{} {
	raw, _ := json.Marshal(data)
	return map[string]interface{}{"success": true, "data": json.RawMessage(raw)}
}

func TestListCanonicalItemsKey(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appointments", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, successEnvelope(map[string]interface{}{
			"items": []model.Booking{{ID: uuid.New(), Date: "2026-09-07"}},
			"pagination": map[string]int{
				"page": 2, "page_size": 10, "total_count": 31, "total_pages": 4,
			},
		}))
	}))

	items, pg, err := client.List(context.Background(), 2, 10, ListFilters{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, pg.Page)
	assert.Equal(t, 31, pg.TotalCount)
	assert.Equal(t, 4, pg.TotalPages)
}

func TestListLegacyAppointmentsKey(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, successEnvelope(map[string]interface{}{
			"appointments": []model.Booking{
				{ID: uuid.New()}, {ID: uuid.New()},
			},
		}))
	}))

	items, pg, err := client.List(context.Background(), 1, 10, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Absent pagination metadata normalises to a single page.
	assert.Equal(t, 1, pg.Page)
	assert.Equal(t, 2, pg.TotalCount)
	assert.Equal(t, 1, pg.TotalPages)
}

func TestCreateMapsConflictPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success": false,
			"error": map[string]interface{}{
				"code":    "already_booked",
				"message": "requested time is already booked",
				"conflicts": []errors.Occupant{
					{Start: "09:30", DurationMinutes: 30, PatientName: "Ada Price", Type: "consultation"},
				},
			},
		})
	}))

	_, err := client.Create(context.Background(), &model.BookingDraft{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindAlreadyBooked))

	appErr, ok := errors.As(err)
	require.True(t, ok)
	require.Len(t, appErr.Occupants, 1)
	assert.Equal(t, "09:30", appErr.Occupants[0].Start)
	assert.Equal(t, "Ada Price", appErr.Occupants[0].PatientName)
}

func TestCreateMapsValidationPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error": map[string]interface{}{
				"code":   "validation_failed",
				"fields": map[string]string{"date": "must be a YYYY-MM-DD date"},
			},
		})
	}))

	_, err := client.Create(context.Background(), &model.BookingDraft{})
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindValidation, appErr.Kind)
	assert.Equal(t, "must be a YYYY-MM-DD date", appErr.Fields["date"])
}

func TestStatusCodeFallbackWithoutPayload(t *testing.T) {
	tests := []struct {
		status int
		kind   errors.Kind
	}{
		{http.StatusBadRequest, errors.KindValidation},
		{http.StatusUnauthorized, errors.KindUnauthorized},
		{http.StatusForbidden, errors.KindUnauthorized},
		{http.StatusNotFound, errors.KindNotFound},
		{http.StatusConflict, errors.KindAlreadyBooked},
		{http.StatusInternalServerError, errors.KindUnknown},
	}

	for _, tt := range tests {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		err := client.Delete(context.Background(), uuid.New())
		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.kind, errors.KindOf(err), "status %d", tt.status)
	}
}

func TestIdempotentCallRetriesOnceOnTransportFailure(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Drop the connection mid-flight to force a transport error.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		writeJSON(w, http.StatusOK, successEnvelope(model.Stats{Total: 3}))
	}))

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMutationNeverRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))

	_, err := client.Create(context.Background(), &model.BookingDraft{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindTransport))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAvailabilityCachedAndInvalidated(t *testing.T) {
	var calls int32
	clinicianID := uuid.New()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusOK, successEnvelope(model.DayAvailability{}))
	}))

	ctx := context.Background()
	_, err := client.Availability(ctx, clinicianID, "2026-09-07")
	require.NoError(t, err)
	_, err = client.Availability(ctx, clinicianID, "2026-09-07")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second fetch should hit the cache")

	client.InvalidateAvailability(clinicianID, "2026-09-07")
	_, err = client.Availability(ctx, clinicianID, "2026-09-07")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBearerTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, successEnvelope([]model.Clinician{}))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "sekrit"}, logger.Nop(), nil)
	_, err := client.Clinicians(context.Background())
	require.NoError(t, err)
}
