package query

import (
	"context"
	"errors"
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

func TestExtractOracle(t *testing.T) {
	q := Extract("46-year-old male, knee surgery in Pune, 3-month-old insurance policy")

	require.NotNil(t, q.Age)
	assert.Equal(t, 46, *q.Age)
	assert.Equal(t, "male", q.Gender)
	assert.Equal(t, "knee surgery", q.Procedure)
	assert.Equal(t, "pune", q.Location)
	assert.Equal(t, "3 months", q.PolicyDuration)
	assert.Equal(t, domain.QueryTypeGeneral, q.QueryType)
}

func TestExtractDeterministic(t *testing.T) {
	raw := "46-year-old male, knee surgery in Pune, 3-month-old insurance policy"
	assert.Equal(t, Extract(raw), Extract(raw))
}

func TestExtractTable(t *testing.T) {
	age := func(n int) *int { return &n }
	tests := []struct {
		name string
		raw  string
		want domain.StructuredQuery
	}{
		{
			name: "age suffix form",
			raw:  "32F, cataract in Delhi",
			want: domain.StructuredQuery{
				Age: age(32), Gender: "female", Procedure: "cataract",
				Location: "delhi", QueryType: domain.QueryTypeGeneral,
			},
		},
		{
			name: "female keyword wins over embedded male",
			raw:  "female, 28 years old, delivery in Mumbai",
			want: domain.StructuredQuery{
				Age: age(28), Gender: "female", Procedure: "delivery",
				Location: "mumbai", QueryType: domain.QueryTypeGeneral,
			},
		},
		{
			name: "coverage query type",
			raw:  "Is bypass surgery covered under a 2 year policy?",
			want: domain.StructuredQuery{
				// bare "<n> year" also satisfies the age pattern
				Age: age(2), Procedure: "bypass", PolicyDuration: "2 years",
				QueryType: "coverage",
			},
		},
		{
			name: "waiting period query type",
			raw:  "What is the waiting period for pre-existing diseases?",
			want: domain.StructuredQuery{QueryType: "waiting period"},
		},
		{
			name: "singular duration unit",
			raw:  "1 month old policy, appendectomy",
			want: domain.StructuredQuery{
				Procedure: "appendectomy", PolicyDuration: "1 month",
				QueryType: domain.QueryTypeGeneral,
			},
		},
		{
			name: "procedure vocabulary order wins over position",
			raw:  "transplant after cataract",
			want: domain.StructuredQuery{
				Procedure: "cataract", QueryType: domain.QueryTypeGeneral,
			},
		},
		{
			name: "nothing extractable",
			raw:  "hello there",
			want: domain.StructuredQuery{QueryType: domain.QueryTypeGeneral},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want.Raw = tt.raw
			assert.Equal(t, tt.want, Extract(tt.raw))
		})
	}
}

func TestStructureSemanticPath(t *testing.T) {
	r := &mockReasoner{resp: `{"age": 46, "gender": "Male", "procedure": "knee surgery", "query_type": "coverage"}`}
	q := NewStructurer(r).Structure(context.Background(), "46M knee surgery covered?")

	require.NotNil(t, q.Age)
	assert.Equal(t, 46, *q.Age)
	assert.Equal(t, "male", q.Gender)
	assert.Equal(t, "knee surgery", q.Procedure)
	assert.Equal(t, "coverage", q.QueryType)
	assert.Equal(t, "46M knee surgery covered?", q.Raw)
}

func TestStructureSemanticPathAgeAsString(t *testing.T) {
	r := &mockReasoner{resp: "Here you go:\n```json\n{\"age\": \"46\"}\n```"}
	q := NewStructurer(r).Structure(context.Background(), "46M")
	require.NotNil(t, q.Age)
	assert.Equal(t, 46, *q.Age)
	assert.Equal(t, domain.QueryTypeGeneral, q.QueryType)
}

func TestStructureFallsBackOnReasonerError(t *testing.T) {
	r := &mockReasoner{err: errors.New("provider down")}
	q := NewStructurer(r).Structure(context.Background(), "46-year-old male, knee surgery in Pune, 3-month-old insurance policy")
	assert.Equal(t, Extract("46-year-old male, knee surgery in Pune, 3-month-old insurance policy"), q)
}

func TestStructureFallsBackOnInvalidJSON(t *testing.T) {
	r := &mockReasoner{resp: "I cannot comply."}
	q := NewStructurer(r).Structure(context.Background(), "32F cataract in Delhi")
	assert.Equal(t, Extract("32F cataract in Delhi"), q)
}

func TestStructureNilReasonerUsesFallback(t *testing.T) {
	q := NewStructurer(nil).Structure(context.Background(), "46M")
	require.NotNil(t, q.Age)
	assert.Equal(t, 46, *q.Age)
	assert.Equal(t, "male", q.Gender)
}
