package cip

// Settings are the global parameters of the constraint runtime. Negative
// age thresholds disable the corresponding mechanism.
type Settings struct {
	// AgeLimit is the age beyond which a non-check constraint is removed
	// from the problem.
	AgeLimit float64 `json:"agelimit"`
	// ObsoleteAge is the age beyond which a constraint is demoted to the
	// obsolete suffix of its role arrays.
	ObsoleteAge float64 `json:"obsoleteage"`
	// FeasTol is the feasibility tolerance plugins should apply when
	// checking candidate solutions.
	FeasTol float64 `json:"feastol"`
	// MaxPresolRounds bounds the global presolving loop.
	MaxPresolRounds int `json:"maxpresolrounds"`
}

// DefaultSettings returns the coded defaults: aging disabled, a feasibility
// tolerance of 1e-6, and at most ten presolving rounds.
func DefaultSettings() Settings {
	return Settings{
		AgeLimit:        -1,
		ObsoleteAge:     -1,
		FeasTol:         1e-6,
		MaxPresolRounds: 10,
	}
}

func (s Settings) exceedsAgeLimit(age float64) bool {
	return s.AgeLimit >= 0 && age > s.AgeLimit
}

func (s Settings) exceedsObsoleteAge(age float64) bool {
	return s.ObsoleteAge >= 0 && age > s.ObsoleteAge
}
