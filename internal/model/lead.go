package model

// Tier is the qualification bucket assigned to an enriched lead, A (best)
// through D (worst). Tier D leads are discarded by the orchestrator.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// ValidTier reports whether t is one of the four known tiers.
func ValidTier(t Tier) bool {
	switch t {
	case TierA, TierB, TierC, TierD:
		return true
	}
	return false
}

// SourceField records which source contributed a field and how much we trust it.
type SourceField struct {
	Source     string  `json:"source"` // "listing", "website", "search", "social"
	Confidence float64 `json:"confidence"`
}

// Contact is a phone number or email with provenance, deduplicated across sources.
type Contact struct {
	Value      string  `json:"value"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Qualification is the Oracle's (or the fallback's) scoring verdict for a lead.
type Qualification struct {
	Score              float64 `json:"score"` // 0-100
	Tier               Tier    `json:"tier"`
	RecommendedChannel string  `json:"recommended_channel,omitempty"`
	RecommendedAction  string  `json:"recommended_action,omitempty"`
	Reasoning          string  `json:"reasoning,omitempty"`
}

// BusinessAnalysis is the Oracle's qualitative read on a business.
type BusinessAnalysis struct {
	Summary        string  `json:"summary"`
	WebsiteVerdict string  `json:"website_verdict,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// EnrichedLead is the enrichment pipeline's output: one qualified business with
// merged contacts, social profiles, scoring, and field-level provenance.
type EnrichedLead struct {
	Name        string  `json:"name"`
	ListingURL  string  `json:"listing_url,omitempty"`
	Address     string  `json:"address,omitempty"`
	Website     string  `json:"website,omitempty"`
	Country     string  `json:"country,omitempty"`
	Location    string  `json:"location,omitempty"`
	Category    string  `json:"category,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`

	Phones         []Contact `json:"phones,omitempty"`
	Emails         []Contact `json:"emails,omitempty"`
	SocialProfiles []string  `json:"social_profiles,omitempty"`

	Analysis      BusinessAnalysis       `json:"analysis"`
	Qualification Qualification          `json:"qualification"`
	QualityScore  float64                `json:"quality_score"`
	Provenance    map[string]SourceField `json:"provenance,omitempty"`
	Confidence    float64                `json:"confidence"`
}
