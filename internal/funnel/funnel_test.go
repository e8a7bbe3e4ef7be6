package funnel

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echelon-media/centerboard/internal/bucket"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/internal/resilience"
	"github.com/echelon-media/centerboard/internal/stage"
	"github.com/echelon-media/centerboard/pkg/highlevel"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func window(start, end string) bucket.Window {
	return bucket.Window{Index: 1, Label: "test", Start: day(start), End: day(end)}
}

var testStages = map[string]string{
	"st-annule":  "Annulé",
	"st-confirm": "Confirmé",
	"st-pasvenu": "Pas venu",
	"st-present": "Présent",
	"st-concret": "Concrétisé",
	"st-nonconf": "Non confirmé",
	"st-exclu":   "Database Reactivation",
}

func opp(stageID string, updated time.Time) highlevel.Opportunity {
	return highlevel.Opportunity{
		ID:              "opp-" + stageID,
		PipelineStageID: stageID,
		UpdatedAt:       updated,
		CreatedAt:       updated,
	}
}

func oppsOf(counts map[string]int, updated time.Time) []highlevel.Opportunity {
	var out []highlevel.Opportunity
	for stageID, n := range counts {
		for i := 0; i < n; i++ {
			out = append(out, opp(stageID, updated))
		}
	}
	return out
}

func TestExtractFunnelCounts(t *testing.T) {
	w := window("2025-01-01", "2025-01-31")
	opps := oppsOf(map[string]int{
		"st-annule":  2,
		"st-confirm": 3,
		"st-pasvenu": 1,
		"st-present": 4,
		"st-concret": 2,
	}, day("2025-01-15"))

	m, stats := Extract(opps, testStages, w, ByUpdatedAt)

	assert.Equal(t, 12, m.TotalPlanned)
	assert.Equal(t, 10, m.Confirmed)
	assert.Equal(t, 6, m.ShowedUp)
	assert.Equal(t, 2, m.Annule)
	assert.Equal(t, 3, m.Confirme)
	assert.Equal(t, 1, m.PasVenu)
	assert.Equal(t, 4, m.Present)
	assert.Equal(t, 2, m.Concretise)

	assert.InDelta(t, 83.33, m.ConfirmationRate, 0.001)
	assert.InDelta(t, 16.67, m.CancellationRate, 0.001)
	assert.InDelta(t, 10.0, m.NoShowRate, 0.001)
	assert.InDelta(t, 60.0, m.PresenceRate, 0.001)
	assert.InDelta(t, 33.33, m.ConversionRate, 0.001)

	assert.Equal(t, 4, stats[stage.Present])
	assert.Equal(t, 2, stats[stage.Annule])
}

func TestExtractExcludesReactivation(t *testing.T) {
	w := window("2025-01-01", "2025-01-31")
	opps := oppsOf(map[string]int{
		"st-present": 2,
		"st-exclu":   5,
	}, day("2025-01-10"))

	m, stats := Extract(opps, testStages, w, ByUpdatedAt)

	assert.Equal(t, 2, m.TotalPlanned)
	assert.Equal(t, 2, m.ShowedUp)
	assert.NotContains(t, stats, stage.Excluded)
}

func TestExtractWindowBounds(t *testing.T) {
	w := window("2025-01-10", "2025-01-12")
	opps := []highlevel.Opportunity{
		opp("st-present", day("2025-01-09")),
		opp("st-present", day("2025-01-10")),
		opp("st-present", day("2025-01-12").Add(23*time.Hour+59*time.Minute)),
		opp("st-present", day("2025-01-13")),
		opp("st-present", time.Time{}),
	}

	m, _ := Extract(opps, testStages, w, ByUpdatedAt)
	assert.Equal(t, 2, m.TotalPlanned)
}

func TestExtractDateFieldSelection(t *testing.T) {
	w := window("2025-01-10", "2025-01-12")
	o := highlevel.Opportunity{
		ID:              "a",
		PipelineStageID: "st-present",
		CreatedAt:       day("2025-01-11"),
		UpdatedAt:       day("2025-02-01"),
	}

	mUpdated, _ := Extract([]highlevel.Opportunity{o}, testStages, w, ByUpdatedAt)
	assert.Equal(t, 0, mUpdated.TotalPlanned)

	mCreated, _ := Extract([]highlevel.Opportunity{o}, testStages, w, ByCreatedAt)
	assert.Equal(t, 1, mCreated.TotalPlanned)
}

func TestExtractEmptyIsZeroSafe(t *testing.T) {
	w := window("2025-01-01", "2025-01-31")

	m, stats := Extract(nil, testStages, w, ByUpdatedAt)

	assert.Equal(t, 0, m.TotalPlanned)
	assert.Zero(t, m.ConfirmationRate)
	assert.Zero(t, m.ConversionRate)
	assert.Empty(t, stats)
}

func TestExtractUnknownStageCounted(t *testing.T) {
	w := window("2025-01-01", "2025-01-31")
	stages := map[string]string{"st-x": "Rappel prévu"}
	opps := []highlevel.Opportunity{opp("st-x", day("2025-01-05"))}

	m, stats := Extract(opps, stages, w, ByUpdatedAt)

	assert.Equal(t, 1, m.TotalPlanned)
	assert.Equal(t, 0, m.Confirmed)
	assert.Equal(t, 1, stats[stage.Canonical("rappel prevu")])
}

type fakeClient struct {
	pipelines    []highlevel.Pipeline
	pipelinesErr error
	opps         []highlevel.Opportunity
	oppsErr      error
}

func (f *fakeClient) Pipelines(context.Context, highlevel.Credentials) ([]highlevel.Pipeline, error) {
	return f.pipelines, f.pipelinesErr
}

func (f *fakeClient) Opportunities(context.Context, highlevel.Credentials, string) ([]highlevel.Opportunity, error) {
	return f.opps, f.oppsErr
}

func (f *fakeClient) Appointments(context.Context, highlevel.Credentials, string, time.Time, time.Time) ([]highlevel.Appointment, error) {
	return nil, nil
}

func testCenter() center.Center {
	return center.Center{
		Name:         "Lyon",
		City:         "Lyon",
		APIKey:       "key",
		LocationID:   "loc",
		PipelineName: "Ventes",
	}
}

func TestFetchSuccess(t *testing.T) {
	client := &fakeClient{
		pipelines: []highlevel.Pipeline{
			{ID: "p1", Name: "Autre"},
			{ID: "p2", Name: "Ventes", Stages: []highlevel.Stage{{ID: "st-present", Name: "Présent"}}},
		},
		opps: []highlevel.Opportunity{opp("st-present", day("2025-01-05"))},
	}

	s := Fetch(context.Background(), client, testCenter(), window("2025-01-01", "2025-01-31"), ByUpdatedAt)

	require.False(t, s.HasError())
	assert.Equal(t, "Lyon", s.CenterName)
	assert.Equal(t, "p2", s.Pipeline.ID)
	assert.Equal(t, 1, s.Metrics.TotalPlanned)
}

func TestFetchPipelineNotFound(t *testing.T) {
	client := &fakeClient{
		pipelines: []highlevel.Pipeline{{ID: "p1", Name: "Autre"}},
	}

	s := Fetch(context.Background(), client, testCenter(), window("2025-01-01", "2025-01-31"), ByUpdatedAt)

	require.True(t, s.HasError())
	assert.Contains(t, s.Err, "pipeline not found")
	assert.Equal(t, 0, s.Metrics.TotalPlanned)
}

func TestFetchAPIErrorIsSoft(t *testing.T) {
	client := &fakeClient{pipelinesErr: eris.New("HTTP 502")}

	s := Fetch(context.Background(), client, testCenter(), window("2025-01-01", "2025-01-31"), ByUpdatedAt)

	require.True(t, s.HasError())
	assert.Contains(t, s.Err, "502")
}

func TestFetchStrictKeepsErrorTyped(t *testing.T) {
	client := &fakeClient{
		pipelinesErr: resilience.NewTransientError(eris.New("HTTP 502"), 502),
	}

	_, err := FetchStrict(context.Background(), client, testCenter(), window("2025-01-01", "2025-01-31"), ByUpdatedAt)

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFetchAllPreservesOrder(t *testing.T) {
	client := &fakeClient{
		pipelines: []highlevel.Pipeline{{ID: "p2", Name: "Ventes"}},
	}
	centers := []center.Center{testCenter(), {Name: "Paris", City: "Paris", APIKey: "k", LocationID: "l", PipelineName: "Inexistant"}}

	out := FetchAll(context.Background(), client, centers, window("2025-01-01", "2025-01-31"), ByUpdatedAt)

	require.Len(t, out, 2)
	assert.Equal(t, "Lyon", out[0].CenterName)
	assert.False(t, out[0].HasError())
	assert.Equal(t, "Paris", out[1].CenterName)
	assert.True(t, out[1].HasError())
}
