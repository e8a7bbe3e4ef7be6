// Package server exposes the reporting engine over HTTP for dashboard
// frontends.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/echelon-media/centerboard/internal/ads"
	"github.com/echelon-media/centerboard/internal/appointment"
	"github.com/echelon-media/centerboard/internal/bucket"
	"github.com/echelon-media/centerboard/internal/center"
	"github.com/echelon-media/centerboard/internal/funnel"
	"github.com/echelon-media/centerboard/internal/report"
	"github.com/echelon-media/centerboard/internal/trend"
	"github.com/echelon-media/centerboard/pkg/highlevel"
	"github.com/echelon-media/centerboard/pkg/metaads"
)

const dateLayout = "2006-01-02"

// Deps carries everything the handlers need.
type Deps struct {
	Centers []center.Center
	CRM     highlevel.Client
	Ads     metaads.Client
	Trend   *trend.Runner
	// Pool bounds concurrent per-center fetches. Zero means 10.
	Pool int
}

// New builds the API router.
func New(deps Deps) http.Handler {
	if deps.Pool <= 0 {
		deps.Pool = 10
	}
	s := &server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/funnel", s.handleFunnel)
		r.Get("/appointments", s.handleAppointments)
		r.Get("/ads", s.handleAds)
		r.Get("/combined", s.handleCombined)
		r.Get("/trend", s.handleTrend)
		r.Get("/trend/rates", s.handleTrendRates)
	})
	return r
}

type server struct {
	deps Deps
}

// query is the parsed common query string. fieldSet records whether the
// request named a date_field, so handlers can apply their own default.
type query struct {
	start    time.Time
	end      time.Time
	centers  []center.Center
	field    funnel.DateField
	fieldSet bool
	policy   bucket.Policy
}

func (s *server) parseQuery(r *http.Request) (query, error) {
	q := query{
		end:    time.Now().UTC().Truncate(24 * time.Hour),
		field:  funnel.ByUpdatedAt,
		policy: bucket.Weekly,
	}

	if v := r.URL.Query().Get("end"); v != "" {
		end, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, eris.Wrapf(err, "parse end %q", v)
		}
		q.end = end
	}
	q.start = q.end.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("start"); v != "" {
		start, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, eris.Wrapf(err, "parse start %q", v)
		}
		q.start = start
	}
	if q.start.After(q.end) {
		return q, eris.New("start is after end")
	}

	var names []string
	if v := r.URL.Query().Get("centers"); v != "" {
		names = strings.Split(v, ",")
	}
	centers, err := center.Select(s.deps.Centers, names)
	if err != nil {
		return q, err
	}
	q.centers = centers

	switch r.URL.Query().Get("date_field") {
	case "":
	case "updated":
		q.fieldSet = true
	case "created":
		q.field = funnel.ByCreatedAt
		q.fieldSet = true
	default:
		return q, eris.Errorf("unknown date_field %q", r.URL.Query().Get("date_field"))
	}

	if v := r.URL.Query().Get("policy"); v != "" {
		policy, err := bucket.ParsePolicy(v)
		if err != nil {
			return q, err
		}
		q.policy = policy
	}

	return q, nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleFunnel(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	win := bucket.Window{Index: 1, Label: "range", Start: q.start, End: q.end}
	stats := fanOut(r.Context(), q.centers, s.deps.Pool, func(ctx context.Context, c center.Center) funnel.Stats {
		return funnel.Fetch(ctx, s.deps.CRM, c, win, q.field)
	})
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleAppointments(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	reports := fanOut(r.Context(), q.centers, s.deps.Pool, func(ctx context.Context, c center.Center) appointment.Report {
		return appointment.Fetch(ctx, s.deps.CRM, c, q.start, q.end)
	})
	writeJSON(w, http.StatusOK, reports)
}

func (s *server) handleAds(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats := fanOut(r.Context(), q.centers, s.deps.Pool, func(ctx context.Context, c center.Center) ads.Stats {
		return ads.Fetch(ctx, s.deps.Ads, c, q.start, q.end)
	})
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleCombined(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	// Combined joins funnel cohorts against ad spend, so both sides must
	// count opportunities created in the range unless the caller overrides.
	if !q.fieldSet {
		q.field = funnel.ByCreatedAt
	}
	win := bucket.Window{Index: 1, Label: "range", Start: q.start, End: q.end}
	funnelStats := fanOut(r.Context(), q.centers, s.deps.Pool, func(ctx context.Context, c center.Center) funnel.Stats {
		return funnel.Fetch(ctx, s.deps.CRM, c, win, q.field)
	})
	adStats := fanOut(r.Context(), q.centers, s.deps.Pool, func(ctx context.Context, c center.Center) ads.Stats {
		return ads.Fetch(ctx, s.deps.Ads, c, q.start, q.end)
	})

	rows := report.Combine(funnelStats, adStats)
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":    rows,
		"summary": report.Summarize(rows),
	})
}

func (s *server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.deps.Trend.Run(r.Context(), q.centers, q.start, q.end, q.policy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleTrendRates(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.deps.Trend.RunRates(r.Context(), q.centers, q.start, q.end, q.policy, q.field)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// fanOut runs fn per center through a bounded pool, results in center order.
func fanOut[T any](ctx context.Context, centers []center.Center, limit int, fn func(ctx context.Context, c center.Center) T) []T {
	out := make([]T, len(centers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range centers {
		g.Go(func() error {
			out[i] = fn(gctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

// writeError maps input errors to 400. Upstream failures never reach here;
// they are embedded per entity in the payloads.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}
