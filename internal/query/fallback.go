package query

import (
	"regexp"
	"strconv"
	"strings"

	"policyqa/internal/domain"
)

// Deterministic extraction patterns. These double as the test oracle for the
// structurer, so any change here is a behavior change, not a refactor.
var (
	agePattern      = regexp.MustCompile(`(?i)(\d+)[-\s]*(year|yr|y)[s\s-]*(old)?|^(\d+)[MF]`)
	maleSuffixRe    = regexp.MustCompile(`\d+M`)
	femaleSuffixRe  = regexp.MustCompile(`\d+F`)
	durationPattern = regexp.MustCompile(`(?i)(\d+)[-\s]*(month|year|day)[s\s-]*(old)?\s*(policy|insurance)`)
)

// Fixed vocabularies. First match in vocabulary order wins, not first match
// by position in the query.
var (
	procedureVocab = []string{"knee surgery", "cataract", "bypass", "transplant", "delivery", "cesarean", "appendectomy"}
	locationVocab  = []string{"mumbai", "delhi", "bangalore", "pune", "hyderabad", "chennai", "kolkata"}
)

// Extract derives a structured query from raw text using only regular
// expressions and fixed vocabularies. It is pure: the same input always
// yields the same output.
func Extract(raw string) domain.StructuredQuery {
	q := domain.StructuredQuery{Raw: raw, QueryType: domain.QueryTypeGeneral}
	lower := strings.ToLower(raw)

	if m := agePattern.FindStringSubmatch(raw); m != nil {
		digits := m[1]
		if digits == "" {
			digits = m[4]
		}
		if n, err := strconv.Atoi(digits); err == nil {
			q.Age = &n
		}
	}

	switch {
	case strings.Contains(lower, "female"):
		q.Gender = "female"
	case strings.Contains(lower, "male"):
		q.Gender = "male"
	case maleSuffixRe.MatchString(raw):
		q.Gender = "male"
	case femaleSuffixRe.MatchString(raw):
		q.Gender = "female"
	}

	for _, proc := range procedureVocab {
		if strings.Contains(lower, proc) {
			q.Procedure = proc
			break
		}
	}

	for _, loc := range locationVocab {
		if strings.Contains(lower, loc) {
			q.Location = loc
			break
		}
	}

	if m := durationPattern.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			unit := strings.ToLower(m[2])
			if n > 1 {
				unit += "s"
			}
			q.PolicyDuration = strconv.Itoa(n) + " " + unit
		}
	}

	switch {
	case strings.Contains(lower, "cover"):
		q.QueryType = "coverage"
	case strings.Contains(lower, "condition"):
		q.QueryType = "conditions"
	case strings.Contains(lower, "waiting period"):
		q.QueryType = "waiting period"
	case strings.Contains(lower, "exclusion"):
		q.QueryType = "exclusions"
	}

	return q
}
