package capability

import (
	"math/rand"
	"testing"

	"github.com/fluxionlabs/fluxion/model"
	"github.com/stretchr/testify/require"
)

func reviewerCaps() model.AgentCapabilities {
	return model.AgentCapabilities{
		Skills: []model.Skill{
			{Name: "code-review", Proficiency: 0.9, Domains: []string{"backend"}},
			{Name: "testing", Proficiency: 0.6, Domains: []string{"backend", "frontend"}},
			{Name: "docs", Proficiency: 0.4},
		},
		Performance: model.AgentPerformance{SuccessRate: 0.95, AvgLatencyMS: 800},
	}
}

func TestMatcher(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"test score bounds":            testScoreBounds,
		"test required skill gating":   testRequiredGating,
		"test missing skill scores 0":  testMissingSkill,
		"test domain mismatch penalty": testDomainPenalty,
		"test preferred skill weight":  testPreferredWeight,
		"test performance penalty":     testPerformancePenalty,
		"test empty matcher":           testEmptyMatcher,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testScoreBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"code-review", "testing", "docs", "absent"}
	for i := 0; i < 200; i++ {
		m := Matcher{
			DomainRequirements:    []string{"backend"},
			DomainMismatchPenalty: rng.Float64(),
		}
		for j := 0; j < 1+rng.Intn(3); j++ {
			m.RequiredSkills = append(m.RequiredSkills, SkillRequirement{
				Name:           names[rng.Intn(len(names))],
				MinProficiency: rng.Float64(),
				Weight:         rng.Float64() * 10,
			})
		}
		for j := 0; j < rng.Intn(3); j++ {
			m.PreferredSkills = append(m.PreferredSkills, SkillRequirement{
				Name:   names[rng.Intn(len(names))],
				Weight: rng.Float64() * 10,
			})
		}
		match := m.Evaluate(reviewerCaps())
		require.GreaterOrEqual(t, match.Score, 0.0)
		require.LessOrEqual(t, match.Score, 1.0)
	}
}

func testRequiredGating(t *testing.T) {
	m := Matcher{
		RequiredSkills: []SkillRequirement{
			{Name: "code-review", MinProficiency: 0.5, Weight: 1},
			{Name: "testing", MinProficiency: 0.8, Weight: 1},
		},
	}
	match := m.Evaluate(reviewerCaps())
	require.False(t, match.RequiredSkillsMet)
	require.Contains(t, match.MissingSkills, "testing")
	require.NotContains(t, match.MissingSkills, "code-review")
	// gating does not zero the score, it stays a soft rank
	require.Greater(t, match.Score, 0.0)
}

func testMissingSkill(t *testing.T) {
	m := Matcher{
		RequiredSkills: []SkillRequirement{{Name: "kubernetes", MinProficiency: 0.1, Weight: 1}},
	}
	match := m.Evaluate(reviewerCaps())
	require.False(t, match.RequiredSkillsMet)
	require.Equal(t, []string{"kubernetes"}, match.MissingSkills)
	require.Equal(t, 0.0, match.SkillScores["kubernetes"])
	require.Equal(t, 0.0, match.Score)
}

func testDomainPenalty(t *testing.T) {
	m := Matcher{
		RequiredSkills:     []SkillRequirement{{Name: "code-review", MinProficiency: 0.1, Weight: 1}},
		DomainRequirements: []string{"backend"},
	}
	inDomain := m.Evaluate(reviewerCaps())

	m.DomainRequirements = []string{"mobile"}
	outOfDomain := m.Evaluate(reviewerCaps())

	require.InDelta(t, 0.9, inDomain.Score, 1e-9)
	require.InDelta(t, 0.9*DefaultDomainMismatchPenalty, outOfDomain.Score, 1e-9)
	// the penalty discounts the score but not the qualification check
	require.True(t, outOfDomain.RequiredSkillsMet)
}

func testPreferredWeight(t *testing.T) {
	// a perfect preferred skill cannot outweigh a weak required one at equal
	// declared weight
	m := Matcher{
		RequiredSkills:  []SkillRequirement{{Name: "docs", MinProficiency: 0.1, Weight: 1}},
		PreferredSkills: []SkillRequirement{{Name: "code-review", Weight: 1}},
	}
	match := m.Evaluate(reviewerCaps())
	// (0.4*1 + 0.9*0.5) / (1 + 0.5)
	require.InDelta(t, (0.4+0.45)/1.5, match.Score, 1e-9)
}

func testPerformancePenalty(t *testing.T) {
	m := Matcher{
		RequiredSkills: []SkillRequirement{{Name: "code-review", MinProficiency: 0.1, Weight: 1}},
		Performance:    &PerformanceRequirements{MinSuccessRate: 0.99},
	}
	match := m.Evaluate(reviewerCaps())
	require.False(t, match.Performance.SuccessRateMet)
	require.True(t, match.Performance.LatencyMet)
	require.False(t, match.Performance.AllMet())
	require.InDelta(t, 0.9*DefaultPerformancePenaltyMultiplier, match.Score, 1e-9)

	m.Performance = &PerformanceRequirements{MinSuccessRate: 0.9, MaxAvgLatencyMS: 1000}
	match = m.Evaluate(reviewerCaps())
	require.True(t, match.Performance.AllMet())
	require.InDelta(t, 0.9, match.Score, 1e-9)
}

func testEmptyMatcher(t *testing.T) {
	m := Matcher{}
	match := m.Evaluate(reviewerCaps())
	require.True(t, match.RequiredSkillsMet)
	require.Equal(t, 0.0, match.Score)
	require.Empty(t, match.MissingSkills)
}
