package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claims-agent/backend/internal/claims"
	"github.com/claims-agent/backend/internal/llm"
)

type scriptedCompleter struct {
	content string
	err     error
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.prompts = append(s.prompts, req.UserPrompt)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func retrievedClauses() []claims.Retrieved {
	return []claims.Retrieved{
		{Chunk: claims.PolicyChunk{ID: "c1", Text: "Knee surgery is covered after a 2 month waiting period.", SourceDocument: "policy.pdf", Position: 0}, Score: 0.91},
		{Chunk: claims.PolicyChunk{ID: "c2", Text: "Cosmetic procedures are excluded.", SourceDocument: "policy.pdf", Position: 1}, Score: 0.55},
	}
}

func months(n int) *int { return &n }

func TestEvaluateParsesValidDecision(t *testing.T) {
	completer := &scriptedCompleter{content: `{
		"decision": "approved",
		"amount": 150000,
		"justification": "Covered per Clause 1 after the waiting period.",
		"user_friendly_explanation": "Your knee surgery is covered.",
		"clause_references": ["Clause 1"],
		"emergency_override": false
	}`}
	e := New(completer, 3)

	q := claims.NormalizedQuery{RawText: "knee surgery", Text: "knee surgery", PolicyDurationMonths: months(4)}
	d := e.Evaluate(context.Background(), q, retrievedClauses())

	assert.Equal(t, claims.VerdictApproved, d.Decision)
	require.NotNil(t, d.Amount)
	assert.Equal(t, 150000.0, *d.Amount)
	assert.Equal(t, []string{"Clause 1"}, d.ClauseReferences)
	assert.False(t, d.EmergencyOverride)
	assert.Greater(t, d.Confidence, 0.5)
}

func TestEvaluateToleratesCodeFences(t *testing.T) {
	completer := &scriptedCompleter{content: "```json\n{\"decision\": \"rejected\", \"justification\": \"Excluded per Clause 2.\", \"clause_references\": [\"Clause 2\"]}\n```"}
	e := New(completer, 3)

	d := e.Evaluate(context.Background(), claims.NormalizedQuery{Text: "nose job"}, retrievedClauses())

	assert.Equal(t, claims.VerdictRejected, d.Decision)
	assert.Equal(t, []string{"Clause 2"}, d.ClauseReferences)
}

func TestEvaluateMalformedResponseFailsClosed(t *testing.T) {
	tests := []string{
		"I think this should be approved because...",
		`{"decision": "maybe", "justification": "unsure"}`,
		`{"decision": "approved"}`,
		`{broken json`,
	}

	for _, content := range tests {
		e := New(&scriptedCompleter{content: content}, 3)
		d := e.Evaluate(context.Background(), claims.NormalizedQuery{Text: "knee surgery"}, retrievedClauses())

		assert.Equal(t, claims.VerdictReview, d.Decision, "content: %s", content)
		assert.NotEmpty(t, d.Justification)
		assert.Empty(t, d.ClauseReferences)
	}
}

func TestEvaluateModelFailureFailsClosed(t *testing.T) {
	e := New(&scriptedCompleter{err: errors.New("connection refused")}, 3)

	d := e.Evaluate(context.Background(), claims.NormalizedQuery{Text: "knee surgery"}, retrievedClauses())

	assert.Equal(t, claims.VerdictReview, d.Decision)
	assert.NotEmpty(t, d.UserFriendlyExplanation)
}

func TestEvaluateStripsFabricatedReferences(t *testing.T) {
	completer := &scriptedCompleter{content: `{
		"decision": "approved",
		"justification": "Covered.",
		"clause_references": ["Clause 1", "Clause 99", "section 12.4 of the master agreement"]
	}`}
	e := New(completer, 3)

	d := e.Evaluate(context.Background(), claims.NormalizedQuery{Text: "knee surgery"}, retrievedClauses())

	assert.Equal(t, []string{"Clause 1"}, d.ClauseReferences)
}

func TestEvaluateAllReferencesFabricated(t *testing.T) {
	completer := &scriptedCompleter{content: `{
		"decision": "approved",
		"justification": "Covered.",
		"clause_references": ["Clause 99"]
	}`}
	e := New(completer, 3)

	d := e.Evaluate(context.Background(), claims.NormalizedQuery{Text: "knee surgery"}, retrievedClauses())

	assert.Nil(t, d.ClauseReferences)
}

func TestEvaluateRejectsOutOfRangeClauseNumbers(t *testing.T) {
	// "Clause 11" must not resolve against the label "Clause 1" by
	// substring, only the cited number counts.
	completer := &scriptedCompleter{content: `{
		"decision": "approved",
		"justification": "Covered.",
		"clause_references": ["Clause 11", "Clause 10", "clause 2"]
	}`}
	e := New(completer, 3)

	d := e.Evaluate(context.Background(), claims.NormalizedQuery{Text: "knee surgery"}, retrievedClauses())

	assert.Equal(t, []string{"clause 2"}, d.ClauseReferences)
}

func TestEmergencyOverrideForcesApproval(t *testing.T) {
	completer := &scriptedCompleter{content: `{
		"decision": "rejected",
		"justification": "Waiting period not met per Clause 1.",
		"clause_references": ["Clause 1"]
	}`}
	e := New(completer, 3)

	q := claims.NormalizedQuery{
		Text:                 "EMERGENCY: myocardial infarction",
		IsEmergency:          true,
		PolicyDurationMonths: months(6),
	}
	d := e.Evaluate(context.Background(), q, retrievedClauses())

	assert.Equal(t, claims.VerdictApproved, d.Decision)
	assert.True(t, d.EmergencyOverride)
}

func TestEmergencyOverrideAppliesAfterParseFailure(t *testing.T) {
	e := New(&scriptedCompleter{content: "not json at all"}, 3)

	q := claims.NormalizedQuery{
		Text:                 "EMERGENCY: severe chest pain",
		IsEmergency:          true,
		PolicyDurationMonths: months(3),
	}
	d := e.Evaluate(context.Background(), q, retrievedClauses())

	assert.Equal(t, claims.VerdictApproved, d.Decision)
	assert.True(t, d.EmergencyOverride)
}

func TestEmergencyOverrideRequiresMinimumPolicyAge(t *testing.T) {
	reject := `{"decision": "rejected", "justification": "Waiting period per Clause 1.", "clause_references": ["Clause 1"]}`

	e := New(&scriptedCompleter{content: reject}, 3)
	q := claims.NormalizedQuery{Text: "emergency", IsEmergency: true, PolicyDurationMonths: months(2)}
	d := e.Evaluate(context.Background(), q, retrievedClauses())
	assert.Equal(t, claims.VerdictRejected, d.Decision)
	assert.False(t, d.EmergencyOverride)

	e = New(&scriptedCompleter{content: reject}, 3)
	q = claims.NormalizedQuery{Text: "emergency", IsEmergency: true}
	d = e.Evaluate(context.Background(), q, retrievedClauses())
	assert.Equal(t, claims.VerdictRejected, d.Decision)
	assert.False(t, d.EmergencyOverride)
}

func TestEvaluateFillsSpecialistRecommendation(t *testing.T) {
	completer := &scriptedCompleter{content: `{"decision": "approved", "justification": "Covered per Clause 1.", "clause_references": ["Clause 1"]}`}
	e := New(completer, 3)

	q := claims.NormalizedQuery{Text: "knee surgery", Procedure: "knee surgery"}
	d := e.Evaluate(context.Background(), q, retrievedClauses())

	assert.Equal(t, "Orthopedic Surgeon", d.SpecialistRecommendation)
}

func TestPromptContainsClausesAndClaim(t *testing.T) {
	completer := &scriptedCompleter{content: `{"decision": "review", "justification": "Unclear."}`}
	e := New(completer, 3)

	q := claims.NormalizedQuery{RawText: "46M knee surgery", Text: "46-year-old male knee surgery", Age: months(46)}
	e.Evaluate(context.Background(), q, retrievedClauses())

	require.Len(t, completer.prompts, 1)
	prompt := completer.prompts[0]
	assert.Contains(t, prompt, "Clause 1 (from policy.pdf)")
	assert.Contains(t, prompt, "Knee surgery is covered")
	assert.Contains(t, prompt, "46M knee surgery")
	assert.Contains(t, prompt, "46-year-old male knee surgery")
}
