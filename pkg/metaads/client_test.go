package metaads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echelon-media/centerboard/internal/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("tok", WithBaseURL(srv.URL), WithRateLimit(1000, 1000))
}

const insightsBody = `{
  "data": [{
    "spend": "1234.56",
    "cpm": "8.4",
    "ctr": "1.9",
    "impressions": "150000",
    "inline_link_clicks": "2800",
    "conversions": [{"action_type": "schedule_total", "value": "12"}],
    "actions": [
      {"action_type": "lead", "value": "85"},
      {"action_type": "landing_page_view", "value": "2100"},
      {"action_type": "link_click", "value": "2900"}
    ],
    "video_30_sec_watched_actions": [{"action_type": "video_view", "value": "5400"}]
  }]
}`

func TestInsights(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/act_123/insights", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "tok", q.Get("access_token"))
		assert.Contains(t, q.Get("time_range"), "'since':'2025-01-01'")
		assert.Contains(t, q.Get("time_range"), "'until':'2025-01-31'")
		assert.Contains(t, q.Get("fields"), "video_30_sec_watched_actions")

		w.Write([]byte(insightsBody))
	}))

	ins, err := c.Insights(context.Background(), "act_123",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	spend, err := ins.Spend.Float64()
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, spend, 1e-9)

	require.Len(t, ins.Conversions, 1)
	assert.Equal(t, 12, ins.Conversions[0].Count())
	require.Len(t, ins.Actions, 3)
	assert.Equal(t, 85, ins.Actions[0].Count())
	require.Len(t, ins.Video30sActions, 1)
	assert.Equal(t, 5400, ins.Video30sActions[0].Count())
}

func TestInsights_EmptyDataIsZero(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))

	ins, err := c.Insights(context.Background(), "act_123", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, ins.Actions)
}

func TestInsights_RateLimited(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":17}}`, http.StatusTooManyRequests)
	}))

	_, err := c.Insights(context.Background(), "act_123", time.Now(), time.Now())
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
}

func TestInsights_ErrorPreservesBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid OAuth access token"}}`, http.StatusBadRequest)
	}))

	_, err := c.Insights(context.Background(), "act_123", time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
	assert.False(t, resilience.IsTransient(err))
}

func TestAction_CountMalformed(t *testing.T) {
	assert.Equal(t, 0, Action{Value: ""}.Count())
	assert.Equal(t, 3, Action{Value: "3.7"}.Count())
}
