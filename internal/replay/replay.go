// Package replay scores candidate policy weights against a user's recorded
// experience history. It operates entirely in-memory and never mutates
// stored weights, so a run is safe against a live database.
package replay

import (
	"sort"

	"github.com/sagecoach/engine/internal/experience"
	"github.com/sagecoach/engine/internal/policy"
)

// #region types

// Candidate is one named weight set to evaluate.
type Candidate struct {
	Name    string
	Weights policy.Weights
}

// Report is the evaluation of one candidate over the history.
type Report struct {
	Name        string
	PolicyValue float64 // mean reward over matched experiences; 0 = no evidence
	MatchRate   float64 // fraction of history where the candidate repeats the logged action
	Matched     int
	Total       int
	Regret      float64 // mean best-minus-chosen score gap over the full history
}

// Summary aggregates one replay run.
type Summary struct {
	Total   int      // scored experiences replayed
	Reports []Report // sorted by PolicyValue descending
	Best    string   // name of the top-ranked candidate, "" when no candidates
}

// #endregion types

// #region run

// Run replays every scored experience through each candidate and ranks the
// candidates by estimated policy value. Ties rank by lower regret.
func Run(experiences []experience.Experience, candidates []Candidate) Summary {
	s := Summary{Total: len(experiences)}

	for _, c := range candidates {
		matched := 0
		for _, exp := range experiences {
			if policy.Select(exp.Vector, c.Weights).Action == exp.Action {
				matched++
			}
		}
		s.Reports = append(s.Reports, Report{
			Name:        c.Name,
			PolicyValue: experience.EvaluatePolicy(experiences, c.Weights),
			MatchRate:   experience.MatchRate(experiences, c.Weights),
			Matched:     matched,
			Total:       len(experiences),
			Regret:      experience.CalculateRegret(experiences, c.Weights),
		})
	}

	sort.SliceStable(s.Reports, func(i, j int) bool {
		a, b := s.Reports[i], s.Reports[j]
		if a.PolicyValue != b.PolicyValue {
			return a.PolicyValue > b.PolicyValue
		}
		return a.Regret < b.Regret
	})
	if len(s.Reports) > 0 {
		s.Best = s.Reports[0].Name
	}
	return s
}

// #endregion run
