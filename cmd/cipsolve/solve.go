package main

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/operator-framework/cippy/pkg/cip"
	"github.com/operator-framework/cippy/pkg/cip/clausal"
	"github.com/operator-framework/cippy/pkg/cip/config"
	"github.com/operator-framework/cippy/pkg/cip/linear"
	"github.com/operator-framework/cippy/pkg/cip/metrics"
)

// maxPropRounds bounds the root propagation loop.
const maxPropRounds = 100

func run(cmd *cobra.Command, args []string) error {
	settingsPath, _ := cmd.Flags().GetString("settings")
	problemPath, _ := cmd.Flags().GetString("problem")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	logger := log.StandardLogger()

	cfg, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	prob, err := config.LoadProblem(problemPath)
	if err != nil {
		return err
	}

	rt, err := cip.New(cip.WithLogger(logger), cip.WithSettings(cfg.Settings))
	if err != nil {
		return err
	}
	clauseHdlr, err := clausal.Register(rt, logger, cfg.HandlerConfig(clausal.HandlerName))
	if err != nil {
		return err
	}
	linHdlr, err := linear.Register(rt, logger, cfg.HandlerConfig(linear.HandlerName))
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		metrics.Register(prometheus.DefaultRegisterer)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.WithError(err).Warn("metrics server stopped")
			}
		}()
		logger.WithField("addr", metricsAddr).Info("serving metrics")
	}

	m, err := buildModel(rt, prob, clauseHdlr, linHdlr)
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"problem": prob.Name,
		"vars":    len(prob.Variables),
		"rows":    len(prob.Rows),
		"clauses": len(prob.Clauses),
	}).Info("loaded problem")

	if err := rt.TransformProb(); err != nil {
		return err
	}
	if err := rt.Init(); err != nil {
		return err
	}
	defer func() {
		if err := rt.Free(); err != nil {
			logger.WithError(err).Warn("teardown failed")
		}
	}()

	verdict, err := solve(rt, m, logger)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		if err := metrics.NewMetricsRuntime(rt).HandleMetrics(); err != nil {
			logger.WithError(err).Warn("publishing metrics failed")
		}
	}
	for _, h := range rt.Handlers() {
		logger.WithFields(log.Fields{
			"conshdlr": h.Name(),
			"conss":    h.NConss(),
			"propcalls": h.NPropCalls(),
			"checkcalls": h.NCheckCalls(),
			"cutoffs":  h.NCutoffs(),
			"domreds":  h.NDomredsFound(),
		}).Debug("handler statistics")
	}
	logger.WithField("verdict", verdict).Info("done")
	return nil
}

// solve presolves the transformed problem and closes the root node with
// propagation. Problems fully decided at the root are checked against the
// resulting fixings.
func solve(rt *cip.Runtime, m *model, logger *log.Logger) (string, error) {
	res, err := rt.Presolve()
	if err != nil {
		return "", err
	}
	switch res {
	case cip.Cutoff:
		return "infeasible", nil
	case cip.Unbounded:
		return "unbounded", nil
	}

	if err := rt.InitSolve(); err != nil {
		return "", err
	}
	defer func() {
		if err := rt.ExitSolve(); err != nil {
			logger.WithError(err).Warn("leaving solve phase failed")
		}
		if err := rt.Exit(); err != nil {
			logger.WithError(err).Warn("leaving init phase failed")
		}
	}()
	if err := rt.InitLPAll(); err != nil {
		return "", err
	}

	for round := 0; round < maxPropRounds; round++ {
		res, err := rt.PropagateAll(0)
		if err != nil {
			return "", err
		}
		if res == cip.Cutoff {
			return "infeasible", nil
		}
		if res != cip.ReducedDom {
			break
		}
	}

	sol, decided := m.fixedSolution()
	if !decided {
		return "undecided", nil
	}
	chk, err := rt.CheckAll(sol, true, true)
	if err != nil {
		return "", err
	}
	if chk == cip.Feasible {
		return "feasible", nil
	}
	return "infeasible", nil
}

// model maps problem file variable names to handler variables. Binary
// variables used in clauses and continuous variables used in rows live in
// separate stores.
type model struct {
	bins map[string]*clausal.Var
	vars map[string]*linear.Var
}

func buildModel(rt *cip.Runtime, prob *config.Problem, clauseHdlr, linHdlr *cip.Handler) (*model, error) {
	m := &model{
		bins: map[string]*clausal.Var{},
		vars: map[string]*linear.Var{},
	}
	bounds := map[string][2]float64{}
	for _, v := range prob.Variables {
		lb, ub := v.Bounds()
		bounds[v.Name] = [2]float64{lb, ub}
		if v.Binary {
			m.bins[v.Name] = clausal.NewVar(v.Name)
		}
	}

	for _, r := range prob.Rows {
		row := &linear.Row{}
		row.Lhs, row.Rhs = r.Sides()
		for name, coef := range r.Coefs {
			v, ok := m.vars[name]
			if !ok {
				b := bounds[name]
				v = linear.NewVar(name, b[0], b[1])
				m.vars[name] = v
			}
			row.Terms = append(row.Terms, linear.Term{Var: v, Coef: coef})
		}
		if err := addOriginal(rt, linHdlr.NewOriginalCons(r.Name, row, cip.ConsFlags{
			Initial:   true,
			Separate:  true,
			Enforce:   true,
			Check:     true,
			Propagate: true,
			Removable: true,
		})); err != nil {
			return nil, err
		}
	}

	for _, cl := range prob.Clauses {
		var lits []clausal.Lit
		for _, name := range cl.Lits {
			neg := false
			if name[0] == '!' {
				neg = true
				name = name[1:]
			}
			if neg {
				lits = append(lits, clausal.Neg(m.bins[name]))
			} else {
				lits = append(lits, clausal.Pos(m.bins[name]))
			}
		}
		if err := addOriginal(rt, clauseHdlr.NewOriginalCons(cl.Name, &clausal.Clause{Lits: lits}, cip.ConsFlags{
			Initial:   true,
			Enforce:   true,
			Check:     true,
			Propagate: true,
			Removable: true,
		})); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func addOriginal(rt *cip.Runtime, c *cip.Cons) error {
	if err := rt.OrigProb().AddCons(c); err != nil {
		return errors.Wrapf(err, "adding constraint %q", c.Name())
	}
	return c.Release()
}

// fixedSolution assembles a candidate from the variable fixings, if the
// propagation loop decided every variable.
func (m *model) fixedSolution() (cip.Solution, bool) {
	out := solution{}
	for name, v := range m.bins {
		if !v.IsFixed() {
			return nil, false
		}
		out[name] = v.Lb()
	}
	for name, v := range m.vars {
		if !v.IsFixed() {
			return nil, false
		}
		out[name] = v.Lb()
	}
	return out, true
}

type solution map[string]float64

func (s solution) Value(v cip.Variable) float64 { return s[v.Name()] }
