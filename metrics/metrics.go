package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smk_league"

var (
	MatchUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_updates_total",
		Help:      "Completed match result writes, by origin.",
	}, []string{"origin"})

	VersionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_version_conflicts_total",
		Help:      "Match writes rejected by the optimistic version check.",
	})

	ReportsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_submitted_total",
		Help:      "Score reports accepted from competitors.",
	})

	ReportsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_confirmed_total",
		Help:      "Matches finalized by two agreeing reports.",
	})

	ReportsMismatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_mismatched_total",
		Help:      "Report pairs that disagreed and were left for admins.",
	})

	StaleReportsEscalatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_reports_escalated_total",
		Help:      "Pending reports escalated by the staleness sweep.",
	})

	BracketGenerationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bracket_generations_total",
		Help:      "Finals brackets generated and persisted.",
	})

	StandingsRecomputesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "standings_recomputes_total",
		Help:      "Full-replacement qualification record recomputations.",
	})

	MatchUpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_update_duration_seconds",
		Help:      "Wall time of a match result write including advancement.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
