package highlevel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echelon-media/centerboard/internal/resilience"
)

var testCreds = Credentials{APIKey: "test-key", LocationID: "loc-1"}

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithRateLimit(1000, 1000))
}

func TestPipelines(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipelines/", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "loc-1", r.Header.Get("Location-Id"))

		json.NewEncoder(w).Encode(map[string]any{
			"pipelines": []map[string]any{
				{
					"id": "p1", "name": "Nouveau Pipeline",
					"stages": []map[string]string{
						{"id": "s1", "name": "RDV Confirmé"},
						{"id": "s2", "name": "Concrétisé"},
					},
				},
			},
		})
	}))

	pipelines, err := c.Pipelines(context.Background(), testCreds)
	require.NoError(t, err)
	require.Len(t, pipelines, 1)

	names := pipelines[0].StageNames()
	assert.Equal(t, "RDV Confirmé", names["s1"])
	assert.Equal(t, "Concrétisé", names["s2"])
}

func TestOpportunities_Pagination(t *testing.T) {
	page := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipelines/p1/opportunities", r.URL.Path)
		page++
		switch page {
		case 1:
			assert.Empty(t, r.URL.Query().Get("startAfterId"))
			json.NewEncoder(w).Encode(map[string]any{
				"opportunities": []map[string]any{
					{"id": "o1", "pipelineStageId": "s1", "createdAt": "2025-01-02T10:00:00Z", "updatedAt": "2025-01-03T10:00:00Z"},
				},
				"meta": map[string]any{
					"nextPageUrl":  "http://next",
					"startAfterId": "o1",
					"startAfter":   1735819200000,
				},
			})
		case 2:
			assert.Equal(t, "o1", r.URL.Query().Get("startAfterId"))
			assert.Equal(t, "1735819200000", r.URL.Query().Get("startAfter"))
			json.NewEncoder(w).Encode(map[string]any{
				"opportunities": []map[string]any{
					{"id": "o2", "pipelineStageId": "s2", "createdAt": "2025-01-04T10:00:00Z", "updatedAt": "2025-01-05T10:00:00Z"},
				},
				"meta": map[string]any{},
			})
		default:
			t.Fatalf("unexpected page %d", page)
		}
	}))

	opps, err := c.Opportunities(context.Background(), testCreds, "p1")
	require.NoError(t, err)
	require.Len(t, opps, 2)
	assert.Equal(t, "o1", opps[0].ID)
	assert.Equal(t, "o2", opps[1].ID)
	assert.Equal(t, 2, page)
}

func TestAppointments_QueryBounds(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "cal-1", q.Get("calendarId"))
		assert.Equal(t, "true", q.Get("includeAll"))
		assert.Equal(t, fmt.Sprint(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()), q.Get("startDate"))

		json.NewEncoder(w).Encode(map[string]any{
			"appointments": []map[string]any{
				{"id": "a1", "startTime": "2025-01-01T09:30:00Z", "appointmentStatus": "confirmed"},
				{"id": "a2", "startTime": "2025-01-02T11:00:00Z", "status": "noshow"},
			},
		})
	}))

	appts, err := c.Appointments(context.Background(), testCreds, "cal-1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, appts, 2)

	assert.Equal(t, "confirmed", appts[0].Status())
	assert.Equal(t, "noshow", appts[1].Status(), "legacy status field is the fallback alias")
	assert.Equal(t, "2025-01-01", appts[0].Day())
}

func TestAppointment_DayMalformed(t *testing.T) {
	assert.Equal(t, "unknown", Appointment{StartTime: ""}.Day())
	assert.Equal(t, "unknown", Appointment{StartTime: "garbage"}.Day())
}

func TestGet_RateLimitedStatusIsTyped(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	}))

	_, err := c.Pipelines(context.Background(), testCreds)
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
}

func TestGet_ServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))

	_, err := c.Pipelines(context.Background(), testCreds)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.False(t, resilience.IsRateLimit(err))
}

func TestGet_ClientErrorIsPermanent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))

	_, err := c.Pipelines(context.Background(), testCreds)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}
