package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "survival_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	evaluationsTotal    *prometheus.CounterVec
	criticalTransitions *prometheus.CounterVec
	streamErrorsTotal   *prometheus.CounterVec
	clearAlertTotal     *prometheus.CounterVec
	heartbeatsTotal     *prometheus.CounterVec
	notifyTotal         *prometheus.CounterVec
	currentLevel        *prometheus.GaugeVec
)

// Init registers the survival metrics on the default registry; safe to call repeatedly.
func Init() {
	registerOnce.Do(func() {
		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evaluations_total",
				Help: "Total safety status evaluations by resulting level",
			},
			[]string{"level"},
		)
		criticalTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "critical_transitions_total",
				Help: "Total transitions into the critical level",
			},
			[]string{"family_id"},
		)
		streamErrorsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stream_errors_total",
				Help: "Total document stream failures",
			},
			[]string{"family_id"},
		)
		clearAlertTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "clear_alert_total",
				Help: "Total clear-alert commands by result",
			},
			[]string{"result"},
		)
		heartbeatsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "heartbeats_total",
				Help: "Total ingested phone heartbeats by result",
			},
			[]string{"result"},
		)
		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total critical notifications by result",
			},
			[]string{"result"},
		)
		currentLevel = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "current_level",
				Help: "Current safety level per family (0 safe, 1 warning, 2 critical)",
			},
			[]string{"family_id"},
		)

		prometheus.MustRegister(
			evaluationsTotal,
			criticalTransitions,
			streamErrorsTotal,
			clearAlertTotal,
			heartbeatsTotal,
			notifyTotal,
			currentLevel,
		)
	})
}

// ObserveEvaluation records one evaluation result
func ObserveEvaluation(familyID, level string, levelValue int) {
	if evaluationsTotal == nil {
		return
	}
	evaluationsTotal.WithLabelValues(level).Inc()
	currentLevel.WithLabelValues(familyID).Set(float64(levelValue))
}

func IncCriticalTransition(familyID string) {
	if criticalTransitions == nil {
		return
	}
	criticalTransitions.WithLabelValues(familyID).Inc()
}

func IncStreamError(familyID string) {
	if streamErrorsTotal == nil {
		return
	}
	streamErrorsTotal.WithLabelValues(familyID).Inc()
}

func IncClearAlert(result string) {
	if clearAlertTotal == nil {
		return
	}
	clearAlertTotal.WithLabelValues(result).Inc()
}

func IncHeartbeat(result string) {
	if heartbeatsTotal == nil {
		return
	}
	heartbeatsTotal.WithLabelValues(result).Inc()
}

func IncNotification(result string) {
	if notifyTotal == nil {
		return
	}
	notifyTotal.WithLabelValues(result).Inc()
}
