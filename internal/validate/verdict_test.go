package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `I reviewed the diff.

**Verdict: FAIL**

**Findings:**
- [PASS] auth check present at handler.go:42
- [FAIL] missing nil check at handler.go:58
- [WARN] unused import at handler.go:3
`

func TestParseExtractsVerdictAndFindings(t *testing.T) {
	r, err := Parse(sampleOutput)
	require.NoError(t, err)

	assert.Equal(t, VerdictFail, r.Verdict)
	require.Len(t, r.Findings, 3)
	assert.Equal(t, "FAIL", r.Findings[1].Verdict)
	assert.Contains(t, r.Findings[1].Description, "handler.go:58")
}

func TestParseMissingVerdictErrors(t *testing.T) {
	_, err := Parse("no verdict here")
	require.Error(t, err)
}

func TestAggregate(t *testing.T) {
	cases := []struct {
		name    string
		verdicts []Verdict
		want    Verdict
	}{
		{"all pass", []Verdict{VerdictPass, VerdictPass}, VerdictPass},
		{"one warn", []Verdict{VerdictPass, VerdictWarn}, VerdictWarn},
		{"one fail wins over warn", []Verdict{VerdictWarn, VerdictFail}, VerdictFail},
		{"empty defaults to pass", nil, VerdictPass},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var results []*Result
			for _, v := range tc.verdicts {
				results = append(results, &Result{Verdict: v})
			}
			assert.Equal(t, tc.want, Aggregate(results))
		})
	}
}
