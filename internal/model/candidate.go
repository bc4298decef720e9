package model

// Candidate is a raw business record returned by the map-listing search source,
// not yet deduplicated, gated, or enriched.
type Candidate struct {
	Name        string  `json:"name"`
	ListingURL  string  `json:"listing_url,omitempty"`
	Address     string  `json:"address,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Website     string  `json:"website,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	Category    string  `json:"category,omitempty"`
}

// JobContext carries the per-job scope a candidate is processed under.
type JobContext struct {
	JobID    string `json:"job_id"`
	Location string `json:"location"`
	Category string `json:"category"`
	Country  string `json:"country"`
	TeamID   string `json:"team_id,omitempty"`
}
