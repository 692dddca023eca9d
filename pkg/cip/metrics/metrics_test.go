package metrics

import (
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cippy/pkg/cip"
)

type noopPlugin struct{}

func (noopPlugin) Check(conss []*cip.Cons, nUseful int, sol cip.Solution, checkIntegrality, checkLPRows bool) (cip.Result, error) {
	return cip.Feasible, nil
}

func (noopPlugin) EnforceLP(conss []*cip.Cons, nUseful int, solInfeasible bool) (cip.Result, error) {
	return cip.Feasible, nil
}

func (noopPlugin) EnforcePseudo(conss []*cip.Cons, nUseful int, solInfeasible, objInfeasible bool) (cip.Result, error) {
	return cip.Feasible, nil
}

func (noopPlugin) Lock(c *cip.Cons, nLocksPos, nLocksNeg int) error {
	return nil
}

func TestHandleMetricsPublishesHandlerState(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	rt, err := cip.New(cip.WithLogger(log))
	require.NoError(t, err)

	h, err := rt.Register("clause", "", cip.DefaultHandlerConfig(), noopPlugin{})
	require.NoError(t, err)

	c := h.NewCons("c1", nil, cip.ConsFlags{Enforce: true, Check: true})
	require.NoError(t, rt.TransProb().AddCons(c))

	reg := prometheus.NewRegistry()
	Register(reg)

	require.NoError(t, NewMetricsRuntime(rt).HandleMetrics())

	assert.Equal(t, 1.0, testutil.ToFloat64(consCount.WithLabelValues("clause", "check")))
	assert.Equal(t, 1.0, testutil.ToFloat64(usefulConsCount.WithLabelValues("clause", "enforce")))
	assert.Equal(t, 0.0, testutil.ToFloat64(consCount.WithLabelValues("clause", "separate")))

	res, err := rt.CheckAll(nil, true, true)
	require.NoError(t, err)
	require.Equal(t, cip.Feasible, res)
	require.NoError(t, NewMetricsRuntime(rt).HandleMetrics())
	assert.Equal(t, 1.0, testutil.ToFloat64(callCount.WithLabelValues("clause", "check")))
}
