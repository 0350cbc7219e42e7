package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/domain"
)

type mockReasoner struct {
	resp string
	err  error
}

func (m *mockReasoner) Name() string { return "mock" }

func (m *mockReasoner) Complete(_ context.Context, _, _ string) (string, error) {
	return m.resp, m.err
}

func scored(texts ...string) []domain.ScoredClause {
	out := make([]domain.ScoredClause, len(texts))
	for i, t := range texts {
		out[i] = domain.ScoredClause{
			Clause: domain.Clause{ID: "doc1-" + t[:1], DocumentID: "doc1", Seq: i, Text: t},
			Score:  1.0 - float64(i)*0.1,
			Source: domain.ScoreSourceVector,
		}
	}
	return out
}

func TestRulesGracePeriod(t *testing.T) {
	q := domain.StructuredQuery{Raw: "What is the grace period for premium payment?"}
	dec := EvaluateRules(q, scored("A grace period of thirty days is allowed for premium payment."))

	assert.Equal(t, domain.VerdictInfoProvided, dec.Verdict)
	reason := strings.ToLower(dec.Justification.Reason)
	assert.True(t, strings.Contains(reason, "30 days") || strings.Contains(reason, "thirty days"))
	assert.NotEmpty(t, dec.Justification.ClauseRefs)
}

func TestRulesPreExistingWaitingPeriod(t *testing.T) {
	q := domain.StructuredQuery{Raw: "What is the waiting period for pre-existing diseases?"}
	dec := EvaluateRules(q, scored("Some unrelated clause."))

	assert.Equal(t, domain.VerdictInfoProvided, dec.Verdict)
	assert.Contains(t, strings.ToLower(dec.Justification.Reason), "waiting period")
}

func TestRulesApproved(t *testing.T) {
	q := domain.StructuredQuery{Raw: "Is knee surgery included?"}
	dec := EvaluateRules(q, scored("Knee surgery is covered under the policy."))

	assert.Equal(t, domain.VerdictApproved, dec.Verdict)
	assert.Equal(t, []string{"Clause from doc1"}, dec.Justification.ClauseRefs)
}

func TestRulesRejected(t *testing.T) {
	q := domain.StructuredQuery{Raw: "Is dental treatment included?"}

	dec := EvaluateRules(q, scored("Dental treatment is not covered."))
	assert.Equal(t, domain.VerdictRejected, dec.Verdict)

	dec = EvaluateRules(q, scored("Cosmetic procedures are excluded from this policy."))
	assert.Equal(t, domain.VerdictRejected, dec.Verdict)
}

func TestRulesInformationNeededDefault(t *testing.T) {
	q := domain.StructuredQuery{Raw: "Tell me something"}
	dec := EvaluateRules(q, scored("Alpha.", "Beta.", "Gamma.", "Delta."))

	assert.Equal(t, domain.VerdictInfoNeeded, dec.Verdict)
	// up to 3 references from the top scored clauses
	assert.Len(t, dec.Justification.ClauseRefs, 3)
	assert.Equal(t, "Clause from doc1", dec.Justification.ClauseRefs[0])
}

func TestRulesWaitingPeriodSuffixAppendsToAnyBranch(t *testing.T) {
	q := domain.StructuredQuery{Raw: "Is knee surgery included?"}
	dec := EvaluateRules(q, scored("Knee surgery is covered after a waiting period of 24 months."))

	assert.Equal(t, domain.VerdictApproved, dec.Verdict)
	assert.Contains(t, dec.Justification.Reason, "waiting period of 24")
}

func TestRulesFirstMatchWins(t *testing.T) {
	// Both the grace-period and the covered branch would match; the
	// grace-period branch is checked first.
	q := domain.StructuredQuery{Raw: "grace period?"}
	dec := EvaluateRules(q, scored("A grace period of 30 days applies. The treatment is covered."))
	assert.Equal(t, domain.VerdictInfoProvided, dec.Verdict)
}

func TestRulesDeterministic(t *testing.T) {
	q := domain.StructuredQuery{Raw: "Is knee surgery included?"}
	cs := scored("Knee surgery is covered.")
	assert.Equal(t, EvaluateRules(q, cs), EvaluateRules(q, cs))
}

func TestEvaluateSemanticPath(t *testing.T) {
	r := &mockReasoner{resp: `{
		"decision": "PARTIAL",
		"amount": 50000,
		"justification": {"reason": "Room rent is capped.", "clause_references": ["Clause 3.2"]}
	}`}
	dec := New(r).Evaluate(context.Background(), domain.StructuredQuery{Raw: "room rent?"}, scored("Room rent capped."))

	assert.Equal(t, domain.VerdictPartial, dec.Verdict)
	require.NotNil(t, dec.Amount)
	assert.Equal(t, 50000.0, *dec.Amount)
	assert.Equal(t, "Room rent is capped.", dec.Justification.Reason)
	assert.Equal(t, []string{"Clause 3.2"}, dec.Justification.ClauseRefs)
}

func TestEvaluateFallsBackOnReasonerError(t *testing.T) {
	r := &mockReasoner{err: errors.New("provider down")}
	q := domain.StructuredQuery{Raw: "Is knee surgery included?"}
	cs := scored("Knee surgery is covered.")
	assert.Equal(t, EvaluateRules(q, cs), New(r).Evaluate(context.Background(), q, cs))
}

func TestEvaluateFallsBackOnUnknownVerdict(t *testing.T) {
	r := &mockReasoner{resp: `{"decision": "MAYBE", "justification": {"reason": "who knows"}}`}
	q := domain.StructuredQuery{Raw: "Is knee surgery included?"}
	cs := scored("Knee surgery is covered.")
	dec := New(r).Evaluate(context.Background(), q, cs)
	assert.Equal(t, domain.VerdictApproved, dec.Verdict)
}

func TestEvaluateFallsBackOnInvalidJSON(t *testing.T) {
	r := &mockReasoner{resp: "plain prose, no JSON"}
	q := domain.StructuredQuery{Raw: "anything"}
	dec := New(r).Evaluate(context.Background(), q, nil)
	assert.Equal(t, domain.VerdictInfoNeeded, dec.Verdict)
}

func TestFormatClauses(t *testing.T) {
	out := formatClauses(scored("Knee surgery is covered."))
	assert.Contains(t, out, "Clause 1 [Source: doc1, Relevance: 1.00]:")
	assert.Contains(t, out, "Knee surgery is covered.")
}
