package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveGames        prometheus.Gauge
	ActiveCalls        prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	OutboundMessages   *prometheus.CounterVec
	CallOutcomes       *prometheus.CounterVec
	EvaluationFailures *prometheus.CounterVec
	EvaluationLatency  prometheus.Histogram
	FirstAudioLatency  prometheus.Histogram

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveGames: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_games",
			Help:      "Number of live game sessions held in memory.",
		}),
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of calls with an open websocket.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		OutboundMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Call runtime messages handed to the websocket writer, by type and result.",
		}, []string{"type", "result"}),
		CallOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_outcomes_total",
			Help:      "Finished calls by terminal status.",
		}, []string{"status"}),
		EvaluationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_failures_total",
			Help:      "Evaluation requests that fell back to the canned scorecard.",
		}, []string{"evaluator"}),
		EvaluationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_latency_ms",
			Help:      "Latency of post-call evaluation in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency from call start to the first prospect audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
		stages: newStageWindow(256),
	}
}

// The Observe helpers accept a nil receiver so callers can run without metrics.

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe(StageFirstAudio, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveEvaluation(evaluator string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.EvaluationLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe(StageEvaluation, float64(d.Milliseconds()))
	if failed {
		m.EvaluationFailures.WithLabelValues(evaluator).Inc()
		m.stages.ObserveIndicator("evaluation_fallback")
	}
}

func (m *Metrics) ObserveCallOutcome(status string, total time.Duration) {
	if m == nil {
		return
	}
	m.CallOutcomes.WithLabelValues(status).Inc()
	m.stages.Observe(StageCallTotal, float64(total.Milliseconds()))
	m.stages.ObserveIndicator(status)
}

func (m *Metrics) SetActiveGames(n int) {
	if m == nil {
		return
	}
	m.ActiveGames.Set(float64(n))
}

// CallStarted bumps the active call gauge and returns the matching decrement.
func (m *Metrics) CallStarted() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveCalls.Inc()
	return m.ActiveCalls.Dec
}

func (m *Metrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveOutboundMessage(msgType, result string) {
	if m == nil {
		return
	}
	m.OutboundMessages.WithLabelValues(msgType, result).Inc()
}

// SnapshotCallStages returns rolling latency percentiles for recent calls.
func (m *Metrics) SnapshotCallStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
