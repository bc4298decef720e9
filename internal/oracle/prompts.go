package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You are a business research analyst for a lead-generation team that sells
websites and digital marketing to small businesses. Businesses with weak or
missing web presence are the best prospects. Always respond with a single
JSON object and nothing else. Do not wrap the JSON in markdown fences.`

// maxSourceTextLen caps each raw text blob sent to the model.
const maxSourceTextLen = 6000

func extractPrompt(req ExtractRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract structured contact data for the business %q", req.Business.Name)
	if req.Business.Address != "" {
		fmt.Fprintf(&b, " at %q", req.Business.Address)
	}
	b.WriteString(" from the raw texts below.\n\n")

	for _, t := range req.Texts {
		text := t.Text
		if len(text) > maxSourceTextLen {
			text = text[:maxSourceTextLen]
		}
		fmt.Fprintf(&b, "--- source: %s ---\n%s\n\n", t.Source, text)
	}

	b.WriteString(`Respond with JSON:
{"name": "", "address": "", "website": "", "description": "",
"phones": [], "emails": [], "social_profiles": [], "confidence": 0.0}

Only include data that belongs to this business. confidence is 0.0-1.0.`)
	return b.String()
}

func crossRefPrompt(req CrossRefRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cross-reference these data sources for the business %q. ", req.Business.Name)
	b.WriteString("Confirm they describe the same business, resolve conflicts preferring higher-confidence sources, and deduplicate phones and emails keeping the best source for each.\n\n")

	for _, src := range req.Sources {
		data, _ := json.Marshal(src)
		b.Write(data)
		b.WriteByte('\n')
	}

	b.WriteString(`
Respond with JSON:
{"same_business": true, "name": "", "address": "", "website": "",
"phones": [{"value": "", "source": "", "confidence": 0.0}],
"emails": [{"value": "", "source": "", "confidence": 0.0}],
"social_profiles": [], "confidence": 0.0}`)
	return b.String()
}

func analyzePrompt(req AnalyzeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the business %q (category: %s", req.Business.Name, req.Business.Category)
	if req.Business.Rating > 0 {
		fmt.Fprintf(&b, ", rating %.1f from %d reviews", req.Business.Rating, req.Business.ReviewCount)
	}
	b.WriteString(").\n")
	if req.Business.Website != "" {
		fmt.Fprintf(&b, "Website: %s (measured quality score %.0f/100, lower means weaker presence).\n", req.Business.Website, req.QualityScore)
	} else {
		b.WriteString("The business has no website.\n")
	}
	if req.Description != "" {
		fmt.Fprintf(&b, "Collected description: %s\n", req.Description)
	}

	b.WriteString(`
Describe what the business does and give a verdict on its web presence.
Respond with JSON:
{"summary": "", "website_verdict": "", "confidence": 0.0}`)
	return b.String()
}

func qualifyPrompt(req QualifyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Qualify the business %q as a lead for website and digital marketing services.\n", req.Business.Name)
	fmt.Fprintf(&b, "Analysis: %s\n", req.Analysis.Summary)
	if req.Analysis.WebsiteVerdict != "" {
		fmt.Fprintf(&b, "Web presence verdict: %s\n", req.Analysis.WebsiteVerdict)
	}
	fmt.Fprintf(&b, "Measured site quality: %.0f/100 (lower is a better prospect).\n", req.QualityScore)
	fmt.Fprintf(&b, "Known contacts: %d phones, %d emails, %d social profiles.\n",
		len(req.Record.Phones), len(req.Record.Emails), len(req.Record.SocialProfiles))

	b.WriteString(`
Score 0-100 where 100 is the ideal prospect: reachable, active business,
weak or missing web presence. Tier A is the top bucket, D means discard.
Respond with JSON:
{"score": 0, "tier": "A", "recommended_channel": "", "recommended_action": "", "reasoning": ""}`)
	return b.String()
}
