package services

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/singleflight"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
)

// InsightResult is a presented insights response.
type InsightResult struct {
	Insights        core.InsightSummary `json:"insights"`
	Cached          bool                `json:"cached"`
	CacheAgeMinutes *int                `json:"cache_age_minutes,omitempty"`
	GeneratedAt     string              `json:"generated_at,omitempty"`
}

// InsightService asks the backend for insights and presents them. Identical
// requests in flight for the same identity share one backend call.
type InsightService struct {
	group  singleflight.Group
	logger *log.Logger
}

func NewInsightService(logger *log.Logger) *InsightService {
	if logger == nil {
		logger = log.Discard()
	}
	return &InsightService{logger: logger.WithComponent(log.ComponentInsights)}
}

// Generate returns presented insights for req. A payload that fails to
// decode surfaces as core.ErrMalformedInsights.
func (s *InsightService) Generate(ctx context.Context, b ledger.Backend, req core.InsightRequest) (InsightResult, error) {
	key := string(b.Mode()) + strconv.Quote(b.Identity()) + req.Key()

	// The shared call outlives any one caller; each caller still stops
	// waiting when its own ctx ends.
	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return b.GenerateInsights(flight, req)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return InsightResult{}, ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		if errors.Is(err, core.ErrMalformedInsights) {
			s.logger.WarnContext(ctx, "Backend returned malformed insights",
				log.FieldMode, b.Mode(), log.FieldError, err)
		}
		return InsightResult{}, err
	}
	resp := v.(core.InsightsResponse)

	s.logger.DebugContext(ctx, "Insights generated",
		log.FieldMode, b.Mode(),
		log.FieldOperation, log.OpGenerate,
		"kind", resp.Insights.Kind,
		"backend_cached", resp.Cached,
		"shared", shared)

	return InsightResult{
		Insights:        core.Present(resp.Insights),
		Cached:          resp.Cached,
		CacheAgeMinutes: resp.CacheAgeMinutes,
		GeneratedAt:     resp.GeneratedAt,
	}, nil
}
