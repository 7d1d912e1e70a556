// Package metrics counts turns, actions, effect batches, capability
// dispatches, state transitions and scheduler firings. A nil *Metrics
// records nothing.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nathoo/fablecore/types"
)

// Turn outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeBlocked = "blocked"
	OutcomeRule    = "rule"
	OutcomeError   = "error"
	OutcomeUnknown = "unknown"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	turnsTotal       *prometheus.CounterVec
	actionsTotal     *prometheus.CounterVec
	dispatchesTotal  *prometheus.CounterVec
	effectsTotal     *prometheus.CounterVec
	rejectedTotal    prometheus.Counter
	transitionsTotal *prometheus.CounterVec
	schedulerTotal   *prometheus.CounterVec
	turnDuration     prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		turnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fablecore_turns_total",
			Help: "Total number of turns by outcome",
		}, []string{"outcome"}),
		actionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fablecore_actions_total",
			Help: "Total number of action invocations by action and outcome",
		}, []string{"action", "outcome"}),
		dispatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fablecore_capability_dispatches_total",
			Help: "Total number of actions handed to a trait behavior",
		}, []string{"action", "trait"}),
		effectsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fablecore_effects_applied_total",
			Help: "Total number of applied effects by kind",
		}, []string{"kind"}),
		rejectedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "fablecore_effect_batches_rejected_total",
			Help: "Total number of effect batches rejected by validation",
		}),
		transitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fablecore_transitions_total",
			Help: "Total number of state machine transitions by machine, from_state and to_state",
		}, []string{"machine", "from_state", "to_state"}),
		schedulerTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fablecore_scheduler_fired_total",
			Help: "Total number of daemon and fuse firings",
		}, []string{"kind"}),
		turnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fablecore_turn_duration_seconds",
			Help:    "Duration of a turn",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

// Turn records a finished turn.
func (m *Metrics) Turn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// Action records an action invocation.
func (m *Metrics) Action(actionID, outcome string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(actionID, outcome).Inc()
}

// Dispatch records a capability dispatch.
func (m *Metrics) Dispatch(actionID, trait string) {
	if m == nil {
		return
	}
	m.dispatchesTotal.WithLabelValues(actionID, trait).Inc()
}

// Applied records an applied effect batch.
func (m *Metrics) Applied(effs []types.Effect) {
	if m == nil {
		return
	}
	for _, e := range effs {
		m.effectsTotal.WithLabelValues(e.Type).Inc()
	}
}

// Rejected records a rejected effect batch.
func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.rejectedTotal.Inc()
}

// Transitions records sm.transition events.
func (m *Metrics) Transitions(evts []types.Event) {
	if m == nil {
		return
	}
	for _, e := range evts {
		if e.Type != "sm.transition" {
			continue
		}
		machine, _ := e.Data["machineId"].(string)
		from, _ := e.Data["from"].(string)
		to, _ := e.Data["to"].(string)
		m.transitionsTotal.WithLabelValues(machine, from, to).Inc()
	}
}

// Fired records daemon and fuse firings.
func (m *Metrics) Fired(evts []types.Event) {
	if m == nil {
		return
	}
	for _, e := range evts {
		switch e.Type {
		case "scheduler.daemon":
			m.schedulerTotal.WithLabelValues("daemon").Inc()
		case "scheduler.fuse":
			m.schedulerTotal.WithLabelValues("fuse").Inc()
		}
	}
}

// Summary renders the counters gathered from g as sorted "name{labels} value"
// lines. Histograms are reported by sample count.
func Summary(g prometheus.Gatherer) ([]string, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				lines = append(lines, fmt.Sprintf("%s_count %d", name, m.GetHistogram().GetSampleCount()))
			}
		}
	}
	sort.Strings(lines)
	return lines, nil
}
