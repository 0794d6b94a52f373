// Package capability scores an agent's declared skills against a requirement
// profile. Matching is a pure function: no I/O, no shared state.
package capability

import (
	"github.com/fluxionlabs/fluxion/model"
)

const (
	DefaultDomainMismatchPenalty          = 0.5
	DefaultPreferredSkillWeightMultiplier = 0.5
	DefaultPerformancePenaltyMultiplier   = 0.7
)

// SkillRequirement names one skill the matcher scores, its gating threshold
// and its weight in the overall score.
type SkillRequirement struct {
	Name           string  `json:"name"`
	MinProficiency float64 `json:"min_proficiency"`
	Weight         float64 `json:"weight"`
}

// PerformanceRequirements gate on the agent's self-reported quality profile.
// Zero-valued fields are not checked.
type PerformanceRequirements struct {
	MinSuccessRate  float64 `json:"min_success_rate,omitempty"`
	MaxAvgLatencyMS float64 `json:"max_avg_latency_ms,omitempty"`
}

// Matcher holds one requirement profile. Multiplier fields default to the
// package constants when zero.
type Matcher struct {
	RequiredSkills                 []SkillRequirement       `json:"required_skills"`
	PreferredSkills                []SkillRequirement       `json:"preferred_skills,omitempty"`
	DomainRequirements             []string                 `json:"domain_requirements,omitempty"`
	DomainMismatchPenalty          float64                  `json:"domain_mismatch_penalty,omitempty"`
	PreferredSkillWeightMultiplier float64                  `json:"preferred_skill_weight_multiplier,omitempty"`
	PerformancePenaltyMultiplier   float64                  `json:"performance_penalty_multiplier,omitempty"`
	Performance                    *PerformanceRequirements `json:"performance,omitempty"`
}

// PerformanceMatch breaks down which performance requirements the agent met.
type PerformanceMatch struct {
	SuccessRateMet bool    `json:"success_rate_met"`
	LatencyMet     bool    `json:"latency_met"`
	SuccessRate    float64 `json:"success_rate"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
}

func (p PerformanceMatch) AllMet() bool {
	return p.SuccessRateMet && p.LatencyMet
}

// Match is the scored output of one evaluation. RequiredSkillsMet answers
// "does it qualify" independently of Score's "how good a fit", so callers
// can hard-filter then soft-rank.
type Match struct {
	Score             float64            `json:"score"`
	RequiredSkillsMet bool               `json:"required_skills_met"`
	SkillScores       map[string]float64 `json:"skill_scores"`
	Performance       PerformanceMatch   `json:"performance"`
	MissingSkills     []string           `json:"missing_skills,omitempty"`
}

// Evaluate scores the capabilities against this matcher. The returned score
// is always within [0, 1].
func (m *Matcher) Evaluate(caps model.AgentCapabilities) Match {
	domainPenalty := m.DomainMismatchPenalty
	if domainPenalty == 0 {
		domainPenalty = DefaultDomainMismatchPenalty
	}
	preferredMult := m.PreferredSkillWeightMultiplier
	if preferredMult == 0 {
		preferredMult = DefaultPreferredSkillWeightMultiplier
	}
	perfPenalty := m.PerformancePenaltyMultiplier
	if perfPenalty == 0 {
		perfPenalty = DefaultPerformancePenaltyMultiplier
	}

	match := Match{
		RequiredSkillsMet: true,
		SkillScores:       make(map[string]float64),
	}
	var requiredSum, requiredWeight float64
	for _, req := range m.RequiredSkills {
		score, proficiency := m.skillScore(&caps, req, domainPenalty)
		match.SkillScores[req.Name] = score
		requiredSum += score * req.Weight
		requiredWeight += req.Weight
		if proficiency < req.MinProficiency {
			match.RequiredSkillsMet = false
			match.MissingSkills = append(match.MissingSkills, req.Name)
		}
	}
	var preferredSum, preferredWeight float64
	for _, pref := range m.PreferredSkills {
		score, _ := m.skillScore(&caps, pref, domainPenalty)
		match.SkillScores[pref.Name] = score
		w := pref.Weight * preferredMult
		preferredSum += score * w
		preferredWeight += w
	}

	totalWeight := requiredWeight + preferredWeight
	if totalWeight > 0 {
		match.Score = clamp01((requiredSum + preferredSum) / totalWeight)
	}

	match.Performance = PerformanceMatch{
		SuccessRateMet: true,
		LatencyMet:     true,
		SuccessRate:    caps.Performance.SuccessRate,
		AvgLatencyMS:   caps.Performance.AvgLatencyMS,
	}
	if m.Performance != nil {
		if m.Performance.MinSuccessRate > 0 && caps.Performance.SuccessRate < m.Performance.MinSuccessRate {
			match.Performance.SuccessRateMet = false
		}
		if m.Performance.MaxAvgLatencyMS > 0 && caps.Performance.AvgLatencyMS > m.Performance.MaxAvgLatencyMS {
			match.Performance.LatencyMet = false
		}
		if !match.Performance.AllMet() {
			match.Score = clamp01(match.Score * perfPenalty)
		}
	}
	return match
}

// skillScore returns the weighted-input score for one requirement together
// with the raw matched proficiency (0 when the skill is absent).
func (m *Matcher) skillScore(caps *model.AgentCapabilities, req SkillRequirement, domainPenalty float64) (float64, float64) {
	skill := caps.Skill(req.Name)
	if skill == nil {
		return 0, 0
	}
	multiplier := 1.0
	if len(m.DomainRequirements) > 0 && !domainsIntersect(skill.Domains, m.DomainRequirements) {
		multiplier = domainPenalty
	}
	return clamp01(skill.Proficiency * multiplier), skill.Proficiency
}

func domainsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
