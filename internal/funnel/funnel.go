// Package funnel extracts CRM pipeline-funnel metrics per center over a
// time window.
package funnel

import (
	"time"

	"github.com/echelon-media/centerboard/internal/bucket"
	"github.com/echelon-media/centerboard/internal/calc"
	"github.com/echelon-media/centerboard/internal/stage"
	"github.com/echelon-media/centerboard/pkg/highlevel"
)

// DateField selects which opportunity timestamp the window filter applies to.
type DateField string

const (
	// ByUpdatedAt filters on the opportunity's last-update time, the
	// default for activity reports.
	ByUpdatedAt DateField = "updatedAt"
	// ByCreatedAt filters on creation time, used when joining against ad
	// spend so both sides count the same cohort.
	ByCreatedAt DateField = "createdAt"
)

// Metrics are the per-center funnel counts and rates for one window.
// Excluded (Database Reactivation) records are absent from every count.
type Metrics struct {
	TotalPlanned int `json:"total_planned"`
	Confirmed    int `json:"confirmed"`
	ShowedUp     int `json:"showed_up"`

	Annule      int `json:"annule"`
	Confirme    int `json:"confirme"`
	PasVenu     int `json:"pas_venu"`
	Present     int `json:"present"`
	Concretise  int `json:"concretise"`
	NonConfirme int `json:"non_confirme"`
	NonQualifie int `json:"non_qualifie"`
	SansReponse int `json:"sans_reponse"`

	ConfirmationRate float64 `json:"confirmation_rate"`
	CancellationRate float64 `json:"cancellation_rate"`
	NoShowRate       float64 `json:"no_show_rate"`
	PresenceRate     float64 `json:"presence_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
}

// Extract filters opportunities to the window by the chosen date field,
// normalizes each record's stage, and tallies funnel counts and rates.
// Records with a missing or zero timestamp are skipped. StageStats carries
// the per-canonical-stage counts over non-excluded records, including
// stages outside the fixed funnel vocabulary.
func Extract(opps []highlevel.Opportunity, stageNames map[string]string, w bucket.Window, field DateField) (Metrics, map[stage.Canonical]int) {
	startAt := w.Start
	endAt := w.End.Add(24*time.Hour - time.Nanosecond)

	var m Metrics
	stageStats := make(map[stage.Canonical]int)

	for _, opp := range opps {
		ts := opp.UpdatedAt
		if field == ByCreatedAt {
			ts = opp.CreatedAt
		}
		if ts.IsZero() || ts.Before(startAt) || ts.After(endAt) {
			continue
		}

		canon := stage.Normalize(stageNames[opp.PipelineStageID])
		if canon == stage.Excluded {
			continue
		}

		m.TotalPlanned++
		if canon == "" {
			canon = "unknown"
		}
		stageStats[canon]++

		switch canon {
		case stage.Annule:
			m.Annule++
		case stage.Confirme:
			m.Confirme++
		case stage.PasVenu:
			m.PasVenu++
		case stage.Present:
			m.Present++
		case stage.Concretise:
			m.Concretise++
		case stage.NonConfirme:
			m.NonConfirme++
		case stage.NonQualifie:
			m.NonQualifie++
		case stage.SansReponse:
			m.SansReponse++
		}
	}

	m.Confirmed = m.Confirme + m.PasVenu + m.Present + m.Concretise
	m.ShowedUp = m.Present + m.Concretise

	m.ConfirmationRate = calc.Round2(calc.Pct(float64(m.Confirmed), float64(m.TotalPlanned)))
	m.CancellationRate = calc.Round2(calc.Pct(float64(m.Annule), float64(m.TotalPlanned)))
	m.NoShowRate = calc.Round2(calc.Pct(float64(m.PasVenu), float64(m.Confirmed)))
	m.PresenceRate = calc.Round2(calc.Pct(float64(m.ShowedUp), float64(m.Confirmed)))
	m.ConversionRate = calc.Round2(calc.Pct(float64(m.Concretise), float64(m.ShowedUp)))

	return m, stageStats
}
