// Package oracle is the LLM boundary of the enrichment pipeline. Four
// operations cover extraction, cross-source merging, business analysis, and
// lead qualification. Every operation has a deterministic fallback so a
// malformed or failed response never sinks a candidate.
package oracle

import (
	"context"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// SourceText is one blob of raw text collected by a scrape or search sub-task.
type SourceText struct {
	Source string // "website", "search", "social"
	Text   string
}

// ExtractRequest asks for structured fields from raw collected text.
type ExtractRequest struct {
	Business model.Candidate
	Texts    []SourceText
}

// ExtractedFields is the structured output of field extraction.
type ExtractedFields struct {
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Website        string   `json:"website"`
	Description    string   `json:"description"`
	Phones         []string `json:"phones"`
	Emails         []string `json:"emails"`
	SocialProfiles []string `json:"social_profiles"`
	Confidence     float64  `json:"confidence"`
}

// TypedSource is one structured data source entering cross-referencing.
type TypedSource struct {
	Source         string   `json:"source"`
	Confidence     float64  `json:"confidence"`
	Name           string   `json:"name,omitempty"`
	Address        string   `json:"address,omitempty"`
	Website        string   `json:"website,omitempty"`
	Phones         []string `json:"phones,omitempty"`
	Emails         []string `json:"emails,omitempty"`
	SocialProfiles []string `json:"social_profiles,omitempty"`
}

// CrossRefRequest asks for validation and merging of multiple typed sources.
type CrossRefRequest struct {
	Business model.Candidate
	Sources  []TypedSource
}

// MergedRecord is the cross-referenced view of one business.
type MergedRecord struct {
	SameBusiness   bool            `json:"same_business"`
	Name           string          `json:"name"`
	Address        string          `json:"address"`
	Website        string          `json:"website"`
	Phones         []model.Contact `json:"phones"`
	Emails         []model.Contact `json:"emails"`
	SocialProfiles []string        `json:"social_profiles"`
	Confidence     float64         `json:"confidence"`
}

// AnalyzeRequest asks for a qualitative read on the business.
type AnalyzeRequest struct {
	Business     model.Candidate
	Description  string
	QualityScore float64
}

// QualifyRequest asks for the final lead scoring. Analysis is the output of
// the preceding AnalyzeBusiness call.
type QualifyRequest struct {
	Business     model.Candidate
	Record       MergedRecord
	Analysis     model.BusinessAnalysis
	QualityScore float64
}

// Oracle is the enrichment LLM interface. Implementations must propagate
// context cancellation unchanged; callers rely on it to distinguish a user
// cancel from a degradable failure.
type Oracle interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (*ExtractedFields, error)
	CrossReference(ctx context.Context, req CrossRefRequest) (*MergedRecord, error)
	AnalyzeBusiness(ctx context.Context, req AnalyzeRequest) (*model.BusinessAnalysis, error)
	QualifyLead(ctx context.Context, req QualifyRequest) (*model.Qualification, error)
}
