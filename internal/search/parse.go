package search

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// parseListings extracts candidates from a rendered listing page, applying
// the query's rating floor and result cap while preserving listing order.
// Structured data (JSON-LD) is preferred; anchor heuristics fill in when the
// page carries none.
func parseListings(html string, q Query) []model.Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Debug("search: unparseable listing page", zap.Error(err))
		return nil
	}

	candidates := parseJSONLD(doc)
	if len(candidates) == 0 {
		candidates = parseAnchors(doc)
	}

	var out []model.Candidate
	for _, c := range candidates {
		if c.Name == "" {
			continue
		}
		if q.MinRating > 0 && c.Rating > 0 && c.Rating < q.MinRating {
			continue
		}
		c.Category = q.Category
		out = append(out, c)
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
	}
	return out
}

// ldBusiness is the subset of a schema.org LocalBusiness block we read.
type ldBusiness struct {
	Type      any    `json:"@type"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Telephone string `json:"telephone"`
	Address   any    `json:"address"`
	Rating    struct {
		Value json.Number `json:"ratingValue"`
		Count json.Number `json:"reviewCount"`
	} `json:"aggregateRating"`
}

func parseJSONLD(doc *goquery.Document) []model.Candidate {
	var out []model.Candidate
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		var blocks []ldBusiness
		if strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
				return
			}
		} else {
			var one ldBusiness
			if err := json.Unmarshal([]byte(raw), &one); err != nil {
				return
			}
			blocks = []ldBusiness{one}
		}
		for _, b := range blocks {
			if b.Name == "" {
				continue
			}
			rating, _ := b.Rating.Value.Float64()
			count, _ := b.Rating.Count.Int64()
			out = append(out, model.Candidate{
				Name:        b.Name,
				Website:     b.URL,
				Phone:       b.Telephone,
				Address:     flattenAddress(b.Address),
				Rating:      rating,
				ReviewCount: int(count),
			})
		}
	})
	return out
}

func flattenAddress(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		var parts []string
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
			if s, ok := a[key].(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// parseAnchors falls back to place links with aria-labels, the shape the
// rendered maps DOM exposes when no structured data is present.
func parseAnchors(doc *goquery.Document) []model.Candidate {
	seen := map[string]bool{}
	var out []model.Candidate
	doc.Find(`a[href*="/maps/place/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if seen[href] {
			return
		}
		seen[href] = true

		name, _ := sel.Attr("aria-label")
		if name == "" {
			name = strings.TrimSpace(sel.Text())
		}
		c := model.Candidate{Name: cleanListingName(name), ListingURL: href}

		if label, ok := sel.Attr("aria-label"); ok {
			c.Rating, c.ReviewCount = ratingFromLabel(label)
		}
		out = append(out, c)
	})
	return out
}

// cleanListingName strips the rating suffix maps appends to aria-labels,
// e.g. "Springfield Bakery · 4.5 stars · 120 reviews".
func cleanListingName(label string) string {
	if i := strings.Index(label, "·"); i > 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}

func ratingFromLabel(label string) (float64, int) {
	var rating float64
	var reviews int
	fields := strings.Fields(strings.ReplaceAll(label, "·", " "))
	for i, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil && v <= 5 && strings.Contains(f, ".") {
			rating = v
			continue
		}
		if i+1 < len(fields) && strings.HasPrefix(strings.ToLower(fields[i+1]), "review") {
			n := strings.ReplaceAll(strings.Trim(f, "()"), ",", "")
			if v, err := strconv.Atoi(n); err == nil {
				reviews = v
			}
		}
	}
	return rating, reviews
}
