package tm

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors the teacher's Prometheus wiring for filesystem-op
// counters (contrib.go.opencensus.io/exporter/prometheus and
// github.com/prometheus/client_golang throughout internal/monitor),
// repurposed here to the transaction manager's own commit/abort/
// conflict/escalation counts.
var (
	commits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picotm",
		Name:      "commits_total",
		Help:      "Number of transactions that committed successfully.",
	})
	aborts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picotm",
		Name:      "aborts_total",
		Help:      "Number of transaction attempts that aborted (including retried ones).",
	})
	conflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picotm",
		Name:      "conflicts_total",
		Help:      "Number of transaction attempts that aborted due to a validation conflict or a peer abort.",
	})
	escalations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "picotm",
		Name:      "irrevocable_escalations_total",
		Help:      "Number of times a transaction escalated to irrevocable mode.",
	})
)

func init() {
	prometheus.MustRegister(commits, aborts, conflicts, escalations)
}

// Collectors returns this package's metric collectors so a caller can
// register them with its own registry instead of the default one.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{commits, aborts, conflicts, escalations}
}
