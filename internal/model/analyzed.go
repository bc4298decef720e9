package model

import "time"

// AnalyzedBusinessRecord remembers the outcome of evaluating one candidate so
// the same identity is never re-charged against API or LLM budget. Identity is
// the listing URL when present, otherwise a normalized (name, location, country)
// tuple. Records are upserted, never duplicated.
type AnalyzedBusinessRecord struct {
	Identity     string    `json:"identity"`
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	Country      string    `json:"country,omitempty"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
	Prospect     bool      `json:"prospect"`
	SkipReason   string    `json:"skip_reason,omitempty"`
	QualityScore float64   `json:"quality_score,omitempty"`
	Converted    bool      `json:"converted"`
	LeadID       string    `json:"lead_id,omitempty"`
}
