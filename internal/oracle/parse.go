package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// ParseError marks a response the model produced that we could not turn into
// the expected structure. Callers degrade to the deterministic fallback.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("oracle: parse %s response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// extractJSON slices the first '{' to the last '}' out of a model response,
// tolerating prose or markdown fences around the object.
func extractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found")
	}
	return s[start : end+1], nil
}

func decodeResponse(op, text string, out any) error {
	raw, err := extractJSON(text)
	if err != nil {
		return &ParseError{Op: op, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &ParseError{Op: op, Err: err}
	}
	return nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// tierForScore maps a 0-100 score onto the A-D buckets, used whenever the
// model returns an unknown tier string.
func tierForScore(score float64) model.Tier {
	switch {
	case score >= 75:
		return model.TierA
	case score >= 55:
		return model.TierB
	case score >= 35:
		return model.TierC
	default:
		return model.TierD
	}
}

func sanitizeQualification(q *model.Qualification) {
	q.Score = clampScore(q.Score)
	if !model.ValidTier(q.Tier) {
		q.Tier = tierForScore(q.Score)
	}
}

func sanitizeAnalysis(a *model.BusinessAnalysis) {
	a.Confidence = clampConfidence(a.Confidence)
}

func sanitizeExtracted(f *ExtractedFields) {
	f.Confidence = clampConfidence(f.Confidence)
	f.Phones = dropEmpty(f.Phones)
	f.Emails = dropEmpty(f.Emails)
	f.SocialProfiles = dropEmpty(f.SocialProfiles)
}

func sanitizeMerged(m *MergedRecord) {
	m.Confidence = clampConfidence(m.Confidence)
	for i := range m.Phones {
		m.Phones[i].Confidence = clampConfidence(m.Phones[i].Confidence)
	}
	for i := range m.Emails {
		m.Emails[i].Confidence = clampConfidence(m.Emails[i].Confidence)
	}
}

func dropEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
