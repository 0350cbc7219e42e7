package query

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"policyqa/internal/domain"
	"policyqa/internal/logger"
)

const structurerSystemPrompt = `You are an expert query parser for an insurance document processing system.
Your task is to extract structured information from natural language queries about insurance policies.

Extract the following information (if present):
- age: the age of the person as a number
- gender: "male" or "female"
- procedure: the medical procedure or treatment mentioned
- location: the location where the procedure is performed or the person resides
- policy_duration: how long the policy has been active (e.g. "3 months", "2 years")
- policy_type: the type of insurance policy mentioned
- query_type: one of "coverage", "conditions", "waiting period", "exclusions", "general"
- other: any other relevant information

Return ONLY a JSON object with those keys. Omit keys you cannot extract.`

// Structurer converts free-text questions into structured queries, using the
// reasoning provider when available and falling back to the deterministic
// extractor on any failure. A nil reasoner disables the semantic path.
type Structurer struct {
	reasoner domain.Reasoner
}

// NewStructurer creates a structurer. reasoner may be nil.
func NewStructurer(reasoner domain.Reasoner) *Structurer {
	return &Structurer{reasoner: reasoner}
}

// Structure never fails; any internal failure of the semantic path is
// recovered via Extract.
func (s *Structurer) Structure(ctx context.Context, raw string) domain.StructuredQuery {
	if s.reasoner == nil {
		return Extract(raw)
	}
	q, err := s.semantic(ctx, raw)
	if err != nil {
		logger.Warn("query structuring fell back to rule extraction: %v", err)
		return Extract(raw)
	}
	return q
}

// wireQuery tolerates the loose typing of model output: age may arrive as a
// number or a digit string.
type wireQuery struct {
	Age            any    `json:"age"`
	Gender         string `json:"gender"`
	Procedure      string `json:"procedure"`
	Location       string `json:"location"`
	PolicyDuration string `json:"policy_duration"`
	PolicyType     string `json:"policy_type"`
	QueryType      string `json:"query_type"`
	Other          string `json:"other"`
}

func (s *Structurer) semantic(ctx context.Context, raw string) (domain.StructuredQuery, error) {
	resp, err := s.reasoner.Complete(ctx, structurerSystemPrompt, raw)
	if err != nil {
		return domain.StructuredQuery{}, err
	}
	payload := extractJSONObject(resp)
	if payload == "" {
		return domain.StructuredQuery{}, errors.New("no JSON object in response")
	}
	var w wireQuery
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return domain.StructuredQuery{}, err
	}

	q := domain.StructuredQuery{
		Raw:            raw,
		Gender:         strings.ToLower(strings.TrimSpace(w.Gender)),
		Procedure:      strings.ToLower(strings.TrimSpace(w.Procedure)),
		Location:       strings.ToLower(strings.TrimSpace(w.Location)),
		PolicyDuration: strings.TrimSpace(w.PolicyDuration),
		PolicyType:     strings.TrimSpace(w.PolicyType),
		QueryType:      strings.ToLower(strings.TrimSpace(w.QueryType)),
		Other:          strings.TrimSpace(w.Other),
	}
	if q.QueryType == "" {
		q.QueryType = domain.QueryTypeGeneral
	}
	if age, ok := coerceAge(w.Age); ok {
		q.Age = &age
	}
	return q, nil
}

func coerceAge(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
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
