package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"policyqa/internal/domain"
	"policyqa/internal/logger"
)

const evaluatorSystemPrompt = `You are an expert insurance policy evaluator. Your task is to evaluate whether a claim or query is covered under the policy based on the relevant clauses provided.

You will be given:
1. A query about an insurance policy
2. Relevant clauses from the policy document

Your job is to:
1. Determine if the query is covered under the policy based on the clauses
2. If applicable, determine the amount covered
3. Provide a clear justification for your decision, citing specific clauses

Return your evaluation in the following JSON format:
{
    "decision": "APPROVED" or "REJECTED" or "PARTIAL" or "INFORMATION_NEEDED" or "INFORMATION_PROVIDED",
    "amount": numeric value if applicable, otherwise null,
    "justification": {
        "reason": "Clear explanation of the decision",
        "clause_references": ["List of specific clause references used"]
    }
}

Be precise, factual, and base your decision strictly on the provided clauses.`

// DecisionEvaluator produces decisions from a structured query and ranked
// clauses, using the reasoning provider when available and the rule table on
// any failure. A nil reasoner disables the semantic path.
type DecisionEvaluator struct {
	reasoner domain.Reasoner
}

// New creates an evaluator. reasoner may be nil.
func New(reasoner domain.Reasoner) *DecisionEvaluator {
	return &DecisionEvaluator{reasoner: reasoner}
}

// Evaluate never fails; reasoning failures and schema-invalid responses fall
// back to EvaluateRules.
func (e *DecisionEvaluator) Evaluate(ctx context.Context, q domain.StructuredQuery, clauses []domain.ScoredClause) domain.Decision {
	if e.reasoner == nil {
		return EvaluateRules(q, clauses)
	}
	dec, err := e.semantic(ctx, q, clauses)
	if err != nil {
		logger.Warn("decision evaluation fell back to rules: %v", err)
		return EvaluateRules(q, clauses)
	}
	return dec
}

// wireDecision tolerates the loose typing of model output: amount may arrive
// as a number, a digit string, or null.
type wireDecision struct {
	Decision      string `json:"decision"`
	Amount        any    `json:"amount"`
	Justification struct {
		Reason     string   `json:"reason"`
		ClauseRefs []string `json:"clause_references"`
	} `json:"justification"`
}

func (e *DecisionEvaluator) semantic(ctx context.Context, q domain.StructuredQuery, clauses []domain.ScoredClause) (domain.Decision, error) {
	user := fmt.Sprintf(`QUERY:
%s

RELEVANT CLAUSES:
%s

Based on the above information, evaluate whether the query is covered under the policy.
Provide your decision, amount (if applicable), and justification in the specified JSON format.`,
		formatQuery(q), formatClauses(clauses))

	resp, err := e.reasoner.Complete(ctx, evaluatorSystemPrompt, user)
	if err != nil {
		return domain.Decision{}, err
	}
	payload := extractJSONObject(resp)
	if payload == "" {
		return domain.Decision{}, errors.New("no JSON object in response")
	}
	var w wireDecision
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return domain.Decision{}, err
	}
	verdict := domain.Verdict(strings.ToUpper(strings.TrimSpace(w.Decision)))
	if !domain.KnownVerdict(verdict) {
		return domain.Decision{}, fmt.Errorf("unknown decision kind %q", w.Decision)
	}
	dec := domain.Decision{
		Verdict: verdict,
		Justification: domain.Justification{
			Reason:     strings.TrimSpace(w.Justification.Reason),
			ClauseRefs: w.Justification.ClauseRefs,
		},
	}
	if dec.Justification.Reason == "" {
		return domain.Decision{}, errors.New("decision missing justification reason")
	}
	if amount, ok := coerceAmount(w.Amount); ok {
		dec.Amount = &amount
	}
	return dec, nil
}

// formatQuery renders the structured query for the evaluation prompt.
func formatQuery(q domain.StructuredQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original Query: %s\n\n", q.Raw)
	b.WriteString("Structured Information:\n")
	if q.Age != nil {
		fmt.Fprintf(&b, "- Age: %d\n", *q.Age)
	}
	if q.Gender != "" {
		fmt.Fprintf(&b, "- Gender: %s\n", q.Gender)
	}
	if q.Procedure != "" {
		fmt.Fprintf(&b, "- Procedure: %s\n", q.Procedure)
	}
	if q.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", q.Location)
	}
	if q.PolicyDuration != "" {
		fmt.Fprintf(&b, "- Policy Duration: %s\n", q.PolicyDuration)
	}
	if q.PolicyType != "" {
		fmt.Fprintf(&b, "- Policy Type: %s\n", q.PolicyType)
	}
	if q.QueryType != "" {
		fmt.Fprintf(&b, "- Query Type: %s\n", q.QueryType)
	}
	return b.String()
}

// formatClauses renders the ranked clauses for the evaluation prompt.
func formatClauses(clauses []domain.ScoredClause) string {
	var b strings.Builder
	for i, sc := range clauses {
		fmt.Fprintf(&b, "Clause %d [Source: %s, Relevance: %.2f]:\n%s\n\n",
			i+1, sc.Clause.DocumentID, sc.Score, sc.Clause.Text)
	}
	return b.String()
}

func coerceAmount(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// extractJSONObject returns the first top-level {...} block of s, tolerating
// prose or code fences around the object.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
