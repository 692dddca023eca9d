package config

import (
	"math"
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/operator-framework/cippy/pkg/cip"
)

// File is the YAML settings document: global runtime settings plus
// per-handler registration parameters, all optional. Unset fields keep
// their coded defaults.
type File struct {
	Settings cip.Settings                 `json:"settings"`
	Handlers map[string]cip.HandlerConfig `json:"handlers,omitempty"`
}

// Load reads a settings file, layering it over the defaults.
func Load(path string) (*File, error) {
	f := &File{Settings: cip.DefaultSettings()}
	if path == "" {
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file %s", path)
	}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrapf(err, "parsing settings file %s", path)
	}
	return f, nil
}

// HandlerConfig returns the parameters for the named handler, falling back
// to the defaults when the file does not mention it.
func (f *File) HandlerConfig(name string) cip.HandlerConfig {
	if cfg, ok := f.Handlers[name]; ok {
		return cfg
	}
	return cip.DefaultHandlerConfig()
}

// VariableDef declares one problem variable. Binary variables default to
// bounds [0, 1].
type VariableDef struct {
	Name   string   `json:"name"`
	Binary bool     `json:"binary,omitempty"`
	Lb     *float64 `json:"lb,omitempty"`
	Ub     *float64 `json:"ub,omitempty"`
}

// Bounds resolves the declared bounds; unbounded sides default to infinity
// for continuous variables and to the unit interval for binary ones.
func (v VariableDef) Bounds() (float64, float64) {
	lb, ub := math.Inf(-1), math.Inf(1)
	if v.Binary {
		lb, ub = 0, 1
	}
	if v.Lb != nil {
		lb = *v.Lb
	}
	if v.Ub != nil {
		ub = *v.Ub
	}
	return lb, ub
}

// RowDef declares one linear constraint lhs <= coefs*x <= rhs; a missing
// side is unbounded.
type RowDef struct {
	Name  string             `json:"name"`
	Coefs map[string]float64 `json:"coefs"`
	Lhs   *float64           `json:"lhs,omitempty"`
	Rhs   *float64           `json:"rhs,omitempty"`
}

// Sides resolves the declared sides.
func (r RowDef) Sides() (float64, float64) {
	lhs, rhs := math.Inf(-1), math.Inf(1)
	if r.Lhs != nil {
		lhs = *r.Lhs
	}
	if r.Rhs != nil {
		rhs = *r.Rhs
	}
	return lhs, rhs
}

// ClauseDef declares one logic-or constraint over binary variables;
// literals are variable names, prefixed with "!" for negation.
type ClauseDef struct {
	Name string   `json:"name"`
	Lits []string `json:"lits"`
}

// Problem is the YAML problem document.
type Problem struct {
	Name      string        `json:"name"`
	Variables []VariableDef `json:"variables"`
	Rows      []RowDef      `json:"rows,omitempty"`
	Clauses   []ClauseDef   `json:"clauses,omitempty"`
}

// LoadProblem reads and validates a problem file.
func LoadProblem(path string) (*Problem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading problem file %s", path)
	}
	p := &Problem{}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, errors.Wrapf(err, "parsing problem file %s", path)
	}
	return p, p.validate()
}

func (p *Problem) validate() error {
	vars := map[string]VariableDef{}
	for _, v := range p.Variables {
		if v.Name == "" {
			return errors.New("variable with empty name")
		}
		if _, ok := vars[v.Name]; ok {
			return errors.Errorf("duplicate variable %q", v.Name)
		}
		lb, ub := v.Bounds()
		if lb > ub {
			return errors.Errorf("variable %q has empty domain [%g, %g]", v.Name, lb, ub)
		}
		vars[v.Name] = v
	}
	for _, r := range p.Rows {
		lhs, rhs := r.Sides()
		if lhs > rhs {
			return errors.Errorf("row %q has crossed sides [%g, %g]", r.Name, lhs, rhs)
		}
		for name := range r.Coefs {
			if _, ok := vars[name]; !ok {
				return errors.Errorf("row %q references unknown variable %q", r.Name, name)
			}
		}
	}
	for _, cl := range p.Clauses {
		if len(cl.Lits) == 0 {
			return errors.Errorf("clause %q is empty", cl.Name)
		}
		for _, lit := range cl.Lits {
			name := lit
			if len(name) > 0 && name[0] == '!' {
				name = name[1:]
			}
			v, ok := vars[name]
			if !ok {
				return errors.Errorf("clause %q references unknown variable %q", cl.Name, name)
			}
			if !v.Binary {
				return errors.Errorf("clause %q references non-binary variable %q", cl.Name, name)
			}
		}
	}
	return nil
}
