package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// Metrics collects orchestration counters and timings. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	turnsStarted   prometheus.Counter
	cycleOutcomes  *prometheus.CounterVec
	turnFailures   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	tokensUsed     *prometheus.CounterVec
}

// NewMetrics registers the orchestration metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		turnsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_turns_started_total",
			Help: "Number of turns begun.",
		}),
		cycleOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_cycle_outcomes_total",
			Help: "Cycle outcomes by type.",
		}, []string{"outcome"}),
		turnFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_turn_failures_total",
			Help: "Failed turns by error code.",
		}, []string{"code"}),
		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_action_duration_seconds",
			Help:    "Synchronous capability execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"capability", "success"}),
		tokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_llm_tokens_total",
			Help: "LLM tokens consumed by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveTurnStarted() {
	if m == nil {
		return
	}
	m.turnsStarted.Inc()
}

func (m *Metrics) ObserveOutcome(outcome Outcome) {
	if m == nil {
		return
	}
	m.cycleOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveFailure(code string) {
	if m == nil {
		return
	}
	m.turnFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveAction(capabilityName string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	label := "false"
	if success {
		label = "true"
	}
	m.actionDuration.WithLabelValues(capabilityName, label).Observe(duration.Seconds())
}

func (m *Metrics) ObserveTokens(usage models.TokenUsage) {
	if m == nil {
		return
	}
	m.tokensUsed.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	m.tokensUsed.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
}
