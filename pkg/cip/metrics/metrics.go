package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/operator-framework/cippy/pkg/cip"
)

const (
	ConshdlrLabel = "conshdlr"
	ProtocolLabel = "protocol"
	RoleLabel     = "role"
)

// MetricsProvider refreshes a set of collectors from solver state.
type MetricsProvider interface {
	HandleMetrics() error
}

type metricsRuntime struct {
	rt *cip.Runtime
}

// NewMetricsRuntime returns a provider publishing per-handler activity
// counters for every handler registered with rt.
func NewMetricsRuntime(rt *cip.Runtime) MetricsProvider {
	return &metricsRuntime{rt}
}

func (m *metricsRuntime) HandleMetrics() error {
	for _, h := range m.rt.Handlers() {
		name := h.Name()

		callCount.WithLabelValues(name, "separate").Set(float64(h.NSepaCalls()))
		callCount.WithLabelValues(name, "enforcelp").Set(float64(h.NEnfoLPCalls()))
		callCount.WithLabelValues(name, "enforcepseudo").Set(float64(h.NEnfoPSCalls()))
		callCount.WithLabelValues(name, "propagate").Set(float64(h.NPropCalls()))
		callCount.WithLabelValues(name, "check").Set(float64(h.NCheckCalls()))
		callCount.WithLabelValues(name, "presolve").Set(float64(h.NPresolCalls()))

		consCount.WithLabelValues(name, "separate").Set(float64(h.NSepaConss()))
		consCount.WithLabelValues(name, "enforce").Set(float64(h.NEnfoConss()))
		consCount.WithLabelValues(name, "check").Set(float64(h.NCheckConss()))
		consCount.WithLabelValues(name, "propagate").Set(float64(h.NPropConss()))

		usefulConsCount.WithLabelValues(name, "separate").Set(float64(h.NUsefulSepaConss()))
		usefulConsCount.WithLabelValues(name, "enforce").Set(float64(h.NUsefulEnfoConss()))
		usefulConsCount.WithLabelValues(name, "check").Set(float64(h.NUsefulCheckConss()))
		usefulConsCount.WithLabelValues(name, "propagate").Set(float64(h.NUsefulPropConss()))

		cutoffCount.WithLabelValues(name).Set(float64(h.NCutoffs()))
		cutsFoundCount.WithLabelValues(name).Set(float64(h.NCutsFound()))
		domredCount.WithLabelValues(name).Set(float64(h.NDomredsFound()))
	}
	return nil
}

type MetricsNil struct{}

func NewMetricsNil() MetricsProvider {
	return &MetricsNil{}
}

func (*MetricsNil) HandleMetrics() error {
	return nil
}

var (
	callCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cip_conshdlr_calls",
			Help: "Number of times a constraint handler protocol has run.",
		},
		[]string{ConshdlrLabel, ProtocolLabel},
	)

	consCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cip_conshdlr_constraints",
			Help: "Number of constraints currently held per role array.",
		},
		[]string{ConshdlrLabel, RoleLabel},
	)

	usefulConsCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cip_conshdlr_useful_constraints",
			Help: "Number of constraints in the useful prefix per role array.",
		},
		[]string{ConshdlrLabel, RoleLabel},
	)

	cutoffCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cip_conshdlr_cutoffs",
			Help: "Number of cutoffs detected by a constraint handler.",
		},
		[]string{ConshdlrLabel},
	)

	cutsFoundCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cip_conshdlr_cuts_found",
			Help: "Number of cutting planes found by a constraint handler.",
		},
		[]string{ConshdlrLabel},
	)

	domredCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cip_conshdlr_domain_reductions",
			Help: "Number of domain reductions found by a constraint handler.",
		},
		[]string{ConshdlrLabel},
	)
)

// Register adds all solver collectors to the given registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(callCount)
	r.MustRegister(consCount)
	r.MustRegister(usefulConsCount)
	r.MustRegister(cutoffCount)
	r.MustRegister(cutsFoundCount)
	r.MustRegister(domredCount)
}
