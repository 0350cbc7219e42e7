package evaluator

import (
	"regexp"
	"strings"

	"policyqa/internal/domain"
)

var waitingPeriodRe = regexp.MustCompile(`waiting period of (\d+)`)

// ruleInput carries everything a fallback rule may look at.
type ruleInput struct {
	query      string // lowercased raw question
	clauseText string // lowercased concatenation of retrieved clause text
	refs       []string
}

// rule pairs a predicate with a decision builder. Rules are evaluated in
// fixed order; the first match wins.
type rule struct {
	name  string
	match func(in ruleInput) bool
	build func(in ruleInput) domain.Decision
}

var fallbackRules = []rule{
	{
		name: "grace-period",
		match: func(in ruleInput) bool {
			return strings.Contains(in.query, "grace period") &&
				(strings.Contains(in.clauseText, "30 days") || strings.Contains(in.clauseText, "thirty days"))
		},
		build: func(in ruleInput) domain.Decision {
			return domain.Decision{
				Verdict: domain.VerdictInfoProvided,
				Justification: domain.Justification{
					Reason:     "A grace period of 30 days is provided for premium payment after the due date.",
					ClauseRefs: []string{"Grace period clause"},
				},
			}
		},
	},
	{
		name: "pre-existing-waiting-period",
		match: func(in ruleInput) bool {
			return strings.Contains(in.query, "waiting period") && strings.Contains(in.query, "pre-existing")
		},
		build: func(in ruleInput) domain.Decision {
			return domain.Decision{
				Verdict: domain.VerdictInfoProvided,
				Justification: domain.Justification{
					Reason:     "Pre-existing diseases are subject to a waiting period before they are covered, as set out in the policy terms.",
					ClauseRefs: []string{"Waiting period clause"},
				},
			}
		},
	},
	{
		name: "covered",
		match: func(in ruleInput) bool {
			return strings.Contains(in.clauseText, "covered") && !strings.Contains(in.clauseText, "not covered")
		},
		build: func(in ruleInput) domain.Decision {
			return domain.Decision{
				Verdict: domain.VerdictApproved,
				Justification: domain.Justification{
					Reason:     "The procedure appears to be covered based on the policy clauses.",
					ClauseRefs: in.refs,
				},
			}
		},
	},
	{
		name: "excluded",
		match: func(in ruleInput) bool {
			return strings.Contains(in.clauseText, "not covered") || strings.Contains(in.clauseText, "excluded")
		},
		build: func(in ruleInput) domain.Decision {
			return domain.Decision{
				Verdict: domain.VerdictRejected,
				Justification: domain.Justification{
					Reason:     "The procedure appears to be excluded based on the policy clauses.",
					ClauseRefs: in.refs,
				},
			}
		},
	},
}

// EvaluateRules applies the ordered fallback rule table. It is pure and
// deterministic: same query and clauses always yield the same decision.
func EvaluateRules(q domain.StructuredQuery, clauses []domain.ScoredClause) domain.Decision {
	in := ruleInput{
		query:      strings.ToLower(q.Raw),
		clauseText: combinedClauseText(clauses),
		refs:       clauseRefs(clauses, 3),
	}

	dec := domain.Decision{
		Verdict: domain.VerdictInfoNeeded,
		Justification: domain.Justification{
			Reason:     "Unable to make a definitive decision based on the provided information.",
			ClauseRefs: in.refs,
		},
	}
	for _, r := range fallbackRules {
		if r.match(in) {
			dec = r.build(in)
			break
		}
	}

	if m := waitingPeriodRe.FindStringSubmatch(in.clauseText); m != nil {
		dec.Justification.Reason += " There is a waiting period of " + m[1] + " mentioned in the policy."
	}
	return dec
}

func combinedClauseText(clauses []domain.ScoredClause) string {
	parts := make([]string, 0, len(clauses))
	for _, sc := range clauses {
		parts = append(parts, sc.Clause.Text)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// clauseRefs renders up to max references as "Clause from <source>".
func clauseRefs(clauses []domain.ScoredClause, max int) []string {
	var refs []string
	for i, sc := range clauses {
		if i >= max {
			break
		}
		refs = append(refs, "Clause from "+sc.Clause.DocumentID)
	}
	return refs
}
