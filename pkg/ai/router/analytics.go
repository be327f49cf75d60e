package router

import (
	"fmt"
	"time"
)

// Thresholds driving the derived recommendations.
const (
	alertFallbackRate = 0.20
	alertFailureRate  = 0.10
	alertAvgLatency   = 5 * time.Second
)

// RoutingStats is a rolling aggregate over the decision log.
type RoutingStats struct {
	Window        time.Duration            `json:"window"`
	TotalCalls    int                      `json:"total_calls"`
	Successes     int                      `json:"successes"`
	Failures      int                      `json:"failures"`
	SuccessRate   float64                  `json:"success_rate"`
	FallbackCalls int                      `json:"fallback_calls"`
	FallbackRate  float64                  `json:"fallback_rate"`
	AvgLatency    time.Duration            `json:"avg_latency"`
	EstimatedCost float64                  `json:"estimated_cost"`
	ByProvider    map[string]ProviderStats `json:"by_provider"`
}

// ProviderStats is the per-provider breakdown inside RoutingStats.
type ProviderStats struct {
	Calls     int           `json:"calls"`
	Successes int           `json:"successes"`
	AvgLatency time.Duration `json:"avg_latency"`
}

// Stats aggregates decisions recorded within the window.
func (r *Router) Stats(window time.Duration) RoutingStats {
	stats := RoutingStats{
		Window:     window,
		ByProvider: make(map[string]ProviderStats),
	}

	decisions := r.log.Since(time.Now().UTC().Add(-window))
	if len(decisions) == 0 {
		return stats
	}

	var totalLatency time.Duration

	latencyByProvider := make(map[string]time.Duration)

	for _, d := range decisions {
		stats.TotalCalls++
		totalLatency += d.Latency

		ps := stats.ByProvider[d.ActualProvider]
		ps.Calls++
		latencyByProvider[d.ActualProvider] += d.Latency

		if d.Success {
			stats.Successes++
			ps.Successes++
		} else {
			stats.Failures++
		}

		if d.FallbackUsed {
			stats.FallbackCalls++
		}

		stats.EstimatedCost += r.cfg.CostPerCall[d.ActualProvider]
		stats.ByProvider[d.ActualProvider] = ps
	}

	stats.SuccessRate = float64(stats.Successes) / float64(stats.TotalCalls)
	stats.FallbackRate = float64(stats.FallbackCalls) / float64(stats.TotalCalls)
	stats.AvgLatency = totalLatency / time.Duration(stats.TotalCalls)

	for name, ps := range stats.ByProvider {
		if ps.Calls > 0 {
			ps.AvgLatency = latencyByProvider[name] / time.Duration(ps.Calls)
			stats.ByProvider[name] = ps
		}
	}

	return stats
}

// Recommendations derives simple threshold-based alerts from the rolling
// statistics. An empty slice means nothing needs attention.
func (r *Router) Recommendations(window time.Duration) []string {
	stats := r.Stats(window)
	if stats.TotalCalls == 0 {
		return nil
	}

	var recs []string

	if stats.FallbackRate > alertFallbackRate {
		recs = append(recs, fmt.Sprintf(
			"fallback rate %.0f%% exceeds %.0f%%: primary provider may be degraded",
			stats.FallbackRate*100, alertFallbackRate*100))
	}

	if failureRate := float64(stats.Failures) / float64(stats.TotalCalls); failureRate > alertFailureRate {
		recs = append(recs, fmt.Sprintf(
			"failure rate %.0f%% exceeds %.0f%%: check provider credentials and quotas",
			failureRate*100, alertFailureRate*100))
	}

	if stats.AvgLatency > alertAvgLatency {
		recs = append(recs, fmt.Sprintf(
			"average latency %s exceeds %s: consider reassigning slow functions",
			stats.AvgLatency.Round(time.Millisecond), alertAvgLatency))
	}

	return recs
}
