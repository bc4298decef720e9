package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
		wantErr        bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", `Here you go: {"a":1} hope that helps`, `{"a":1}`, false},
		{"no object", "sorry, I cannot do that", "", true},
		{"reversed braces", "} {", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeResponse_MalformedIsParseError(t *testing.T) {
	var out ExtractedFields
	err := decodeResponse("extract", `{"phones": "not-an-array"}`, &out)
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, "extract", pe.Op)
}

func TestSanitizeQualification_ClampsAndDefaults(t *testing.T) {
	q := model.Qualification{Score: 140, Tier: "Z"}
	sanitizeQualification(&q)
	assert.InDelta(t, 100, q.Score, 0.01)
	assert.Equal(t, model.TierA, q.Tier)

	q = model.Qualification{Score: -5, Tier: ""}
	sanitizeQualification(&q)
	assert.Zero(t, q.Score)
	assert.Equal(t, model.TierD, q.Tier)

	q = model.Qualification{Score: 10, Tier: model.TierB}
	sanitizeQualification(&q)
	assert.Equal(t, model.TierB, q.Tier, "valid tier must be kept")
}

func TestTierForScore(t *testing.T) {
	assert.Equal(t, model.TierA, tierForScore(80))
	assert.Equal(t, model.TierB, tierForScore(60))
	assert.Equal(t, model.TierC, tierForScore(40))
	assert.Equal(t, model.TierD, tierForScore(20))
}

func TestSanitizeExtracted_DropsEmptyEntries(t *testing.T) {
	f := ExtractedFields{
		Phones:     []string{"555-0100", "  ", ""},
		Emails:     []string{"a@b.com"},
		Confidence: 3,
	}
	sanitizeExtracted(&f)
	assert.Equal(t, []string{"555-0100"}, f.Phones)
	assert.InDelta(t, 1.0, f.Confidence, 0.01)
}
