package oracle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// Deterministic fallbacks. Each mirrors the shape of the oracle operation it
// replaces so the pipeline can degrade a single failed call without losing
// the candidate.

var (
	phoneRe  = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	socialRe = regexp.MustCompile(`https?://(?:www\.)?(?:facebook|instagram|linkedin|tiktok|x|twitter)\.com/[^\s"'<>)]+`)
)

// FallbackExtract harvests contacts from the raw texts with regexes.
func FallbackExtract(req ExtractRequest) *ExtractedFields {
	var all strings.Builder
	for _, t := range req.Texts {
		all.WriteString(t.Text)
		all.WriteByte('\n')
	}
	text := all.String()

	return &ExtractedFields{
		Name:           req.Business.Name,
		Address:        req.Business.Address,
		Website:        req.Business.Website,
		Phones:         uniqueStrings(phoneRe.FindAllString(text, 10), normalizePhone),
		Emails:         uniqueStrings(emailRe.FindAllString(text, 10), strings.ToLower),
		SocialProfiles: uniqueStrings(socialRe.FindAllString(text, 10), strings.ToLower),
		Confidence:     0.4,
	}
}

// FallbackCrossReference merges sources preferring higher confidence, with
// contact dedup keyed by normalized value.
func FallbackCrossReference(req CrossRefRequest) *MergedRecord {
	out := &MergedRecord{
		SameBusiness: true,
		Name:         req.Business.Name,
		Confidence:   0.4,
	}

	phoneSeen := map[string]bool{}
	emailSeen := map[string]bool{}
	socialSeen := map[string]bool{}

	for _, src := range req.Sources {
		if src.Name != "" && out.Name == "" {
			out.Name = src.Name
		}
		if src.Address != "" && (out.Address == "" || src.Confidence > 0.7) {
			out.Address = src.Address
		}
		if src.Website != "" && out.Website == "" {
			out.Website = src.Website
		}
		for _, p := range src.Phones {
			key := normalizePhone(p)
			if key == "" || phoneSeen[key] {
				continue
			}
			phoneSeen[key] = true
			out.Phones = append(out.Phones, model.Contact{Value: p, Source: src.Source, Confidence: src.Confidence})
		}
		for _, e := range src.Emails {
			key := strings.ToLower(strings.TrimSpace(e))
			if key == "" || emailSeen[key] {
				continue
			}
			emailSeen[key] = true
			out.Emails = append(out.Emails, model.Contact{Value: key, Source: src.Source, Confidence: src.Confidence})
		}
		for _, s := range src.SocialProfiles {
			key := strings.ToLower(strings.TrimRight(s, "/"))
			if key == "" || socialSeen[key] {
				continue
			}
			socialSeen[key] = true
			out.SocialProfiles = append(out.SocialProfiles, s)
		}
	}
	return out
}

// FallbackAnalyze produces a templated analysis from the listing data alone.
func FallbackAnalyze(req AnalyzeRequest) *model.BusinessAnalysis {
	summary := fmt.Sprintf("%s is a %s business", req.Business.Name, req.Business.Category)
	if req.Business.Address != "" {
		summary += " at " + req.Business.Address
	}
	summary += "."

	verdict := "no website found"
	if req.Business.Website != "" {
		switch {
		case req.QualityScore < 40:
			verdict = "website present but weak"
		case req.QualityScore < 70:
			verdict = "website of middling quality"
		default:
			verdict = "website in good shape"
		}
	}

	return &model.BusinessAnalysis{
		Summary:        summary,
		WebsiteVerdict: verdict,
		Confidence:     0.3,
	}
}

// Fallback qualification weights: web-presence gap 50%, reachability 30%,
// listing reputation 20%.
const (
	weightPresenceGap  = 0.5
	weightReachability = 0.3
	weightReputation   = 0.2
)

// FallbackQualify scores a lead from measured signals only.
func FallbackQualify(req QualifyRequest) *model.Qualification {
	// Weak or missing web presence is the product's target, so the gap
	// score is the inverse of the measured quality.
	gap := 100 - clampScore(req.QualityScore)
	if req.Business.Website == "" {
		gap = 100
	}

	var reach float64
	if len(req.Record.Phones) > 0 {
		reach += 50
	}
	if len(req.Record.Emails) > 0 {
		reach += 35
	}
	if len(req.Record.SocialProfiles) > 0 {
		reach += 15
	}

	var rep float64
	if req.Business.Rating > 0 {
		rep = req.Business.Rating / 5 * 100
	}

	score := clampScore(gap*weightPresenceGap + reach*weightReachability + rep*weightReputation)

	channel := "email"
	if len(req.Record.Emails) == 0 && len(req.Record.Phones) > 0 {
		channel = "phone"
	}

	return &model.Qualification{
		Score:              score,
		Tier:               tierForScore(score),
		RecommendedChannel: channel,
		RecommendedAction:  "introductory outreach",
		Reasoning:          "rule-based scoring from measured signals",
	}
}

func normalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func uniqueStrings(in []string, norm func(string) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		key := norm(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
