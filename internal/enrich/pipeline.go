// Package enrich turns one raw candidate into a qualified lead: concurrent
// scrape and search sub-tasks feed four oracle calls, each with a
// deterministic fallback. Only cancellation aborts a candidate.
package enrich

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/cancel"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/oracle"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/scrape"
)

// listingConfidence is the trust assigned to fields that came straight from
// the map listing.
const listingConfidence = 0.9

// Pipeline enriches candidates. One instance serves a whole job; all state
// is per-call.
type Pipeline struct {
	oracle   oracle.Oracle
	scraper  scrape.Scraper
	searcher scrape.Searcher
}

func New(o oracle.Oracle, scraper scrape.Scraper, searcher scrape.Searcher) *Pipeline {
	return &Pipeline{oracle: o, scraper: scraper, searcher: searcher}
}

// gathered is everything the fan-out phase collected for one candidate.
type gathered struct {
	mu        sync.Mutex
	texts     []oracle.SourceText
	links     []string
	socialURL string
}

func (g *gathered) addText(source, text string) {
	if text == "" {
		return
	}
	g.mu.Lock()
	g.texts = append(g.texts, oracle.SourceText{Source: source, Text: text})
	g.mu.Unlock()
}

func (g *gathered) addLinks(links []string) {
	g.mu.Lock()
	g.links = append(g.links, links...)
	g.mu.Unlock()
}

func (g *gathered) setSocialURL(u string) {
	g.mu.Lock()
	if g.socialURL == "" {
		g.socialURL = u
	}
	g.mu.Unlock()
}

// Enrich runs the full pipeline for one candidate. qualityScore is the
// gate's measured website score, carried into analysis and qualification.
func (p *Pipeline) Enrich(tok *cancel.Token, cand model.Candidate, jc model.JobContext, qualityScore float64) (*model.EnrichedLead, error) {
	if tok.Cancelled() {
		return nil, cancel.ErrCancelled
	}

	g, err := p.gather(tok, cand, jc)
	if err != nil {
		return nil, err
	}

	if tok.Cancelled() {
		return nil, cancel.ErrCancelled
	}

	extracted, merged, err := p.extractAndCrossRef(tok, cand, g)
	if err != nil {
		return nil, err
	}

	if tok.Cancelled() {
		return nil, cancel.ErrCancelled
	}

	analysis, err := p.analyze(tok, cand, extracted.Description, qualityScore)
	if err != nil {
		return nil, err
	}

	if tok.Cancelled() {
		return nil, cancel.ErrCancelled
	}

	qualification, err := p.qualify(tok, cand, *merged, *analysis, qualityScore)
	if err != nil {
		return nil, err
	}

	return assembleLead(cand, jc, merged, analysis, qualification, qualityScore), nil
}

// gather fans out the scrape and search sub-tasks. Each is individually
// best-effort; only cancellation escapes.
func (p *Pipeline) gather(tok *cancel.Token, cand model.Candidate, jc model.JobContext) (*gathered, error) {
	g := &gathered{}
	eg, _ := errgroup.WithContext(tok.Context())

	if cand.Website != "" {
		eg.Go(func() error {
			page, err := p.scraper.Scrape(tok.Context(), cand.Website)
			if err != nil {
				return absorb("website scrape", cand.Name, err)
			}
			g.addText("website", page.Text)
			g.addLinks(page.Links)
			return nil
		})
	}

	eg.Go(func() error {
		query := fmt.Sprintf("%s %s contact", cand.Name, jc.Location)
		hits, err := p.searcher.Search(tok.Context(), query, "")
		if err != nil {
			return absorb("web search", cand.Name, err)
		}
		g.addText("search", hitsText(hits))
		return nil
	})

	eg.Go(func() error {
		query := fmt.Sprintf("%s %s", cand.Name, jc.Location)
		hits, err := p.searcher.Search(tok.Context(), query, "facebook.com")
		if err != nil {
			return absorb("social search", cand.Name, err)
		}
		g.addText("search", hitsText(hits))
		for _, h := range hits {
			if isSocialURL(h.URL) {
				g.setSocialURL(h.URL)
				break
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if tok.Cancelled() {
		return nil, cancel.ErrCancelled
	}

	// Opportunistic: a social profile found in search or site links gets one
	// extra scrape.
	if g.socialURL == "" {
		for _, l := range g.links {
			if isSocialURL(l) {
				g.setSocialURL(l)
				break
			}
		}
	}
	if g.socialURL != "" {
		page, err := p.scraper.Scrape(tok.Context(), g.socialURL)
		if err != nil {
			if cancel.IsCancellation(err) {
				return nil, cancel.ErrCancelled
			}
			zap.L().Debug("enrich: social scrape failed",
				zap.String("candidate", cand.Name),
				zap.String("url", g.socialURL),
				zap.Error(err),
			)
		} else {
			g.addText("social", page.Text)
		}
	}

	return g, nil
}

// absorb logs a failed sub-task and swallows it, unless it is a cancellation.
func absorb(task, candidate string, err error) error {
	if cancel.IsCancellation(err) {
		return cancel.ErrCancelled
	}
	zap.L().Debug("enrich: sub-task failed",
		zap.String("task", task),
		zap.String("candidate", candidate),
		zap.Error(err),
	)
	return nil
}

// extractAndCrossRef runs the two independent oracle calls in parallel, each
// degrading to its fallback on a non-cancellation failure.
func (p *Pipeline) extractAndCrossRef(tok *cancel.Token, cand model.Candidate, g *gathered) (*oracle.ExtractedFields, *oracle.MergedRecord, error) {
	extractReq := oracle.ExtractRequest{Business: cand, Texts: g.texts}

	var (
		extracted *oracle.ExtractedFields
		merged    *oracle.MergedRecord
	)

	eg, _ := errgroup.WithContext(tok.Context())

	eg.Go(func() error {
		out, err := p.oracle.ExtractFields(tok.Context(), extractReq)
		if err != nil {
			if cancel.IsCancellation(err) {
				return cancel.ErrCancelled
			}
			zap.L().Warn("enrich: extraction degraded to fallback",
				zap.String("candidate", cand.Name), zap.Error(err))
			out = oracle.FallbackExtract(extractReq)
		}
		extracted = out
		return nil
	})

	eg.Go(func() error {
		req := oracle.CrossRefRequest{
			Business: cand,
			Sources:  seedSources(cand, g),
		}
		out, err := p.oracle.CrossReference(tok.Context(), req)
		if err != nil {
			if cancel.IsCancellation(err) {
				return cancel.ErrCancelled
			}
			zap.L().Warn("enrich: cross-reference degraded to fallback",
				zap.String("candidate", cand.Name), zap.Error(err))
			out = oracle.FallbackCrossReference(req)
		}
		merged = out
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	// Extraction results the merge step did not see get folded in after the
	// fact, keyed on normalized values like the fallback merge.
	foldExtracted(merged, extracted)
	return extracted, merged, nil
}

func (p *Pipeline) analyze(tok *cancel.Token, cand model.Candidate, description string, qualityScore float64) (*model.BusinessAnalysis, error) {
	req := oracle.AnalyzeRequest{Business: cand, Description: description, QualityScore: qualityScore}
	out, err := p.oracle.AnalyzeBusiness(tok.Context(), req)
	if err != nil {
		if cancel.IsCancellation(err) {
			return nil, cancel.ErrCancelled
		}
		zap.L().Warn("enrich: analysis degraded to fallback",
			zap.String("candidate", cand.Name), zap.Error(err))
		out = oracle.FallbackAnalyze(req)
	}
	return out, nil
}

func (p *Pipeline) qualify(tok *cancel.Token, cand model.Candidate, merged oracle.MergedRecord, analysis model.BusinessAnalysis, qualityScore float64) (*model.Qualification, error) {
	req := oracle.QualifyRequest{
		Business:     cand,
		Record:       merged,
		Analysis:     analysis,
		QualityScore: qualityScore,
	}
	out, err := p.oracle.QualifyLead(tok.Context(), req)
	if err != nil {
		if cancel.IsCancellation(err) {
			return nil, cancel.ErrCancelled
		}
		zap.L().Warn("enrich: qualification degraded to fallback",
			zap.String("candidate", cand.Name), zap.Error(err))
		out = oracle.FallbackQualify(req)
	}
	return out, nil
}

// seedSources builds the typed-source list for cross-referencing: the listing
// itself first at high confidence.
func seedSources(cand model.Candidate, g *gathered) []oracle.TypedSource {
	sources := []oracle.TypedSource{{
		Source:     "listing",
		Confidence: listingConfidence,
		Name:       cand.Name,
		Address:    cand.Address,
		Website:    cand.Website,
	}}
	if cand.Phone != "" {
		sources[0].Phones = []string{cand.Phone}
	}
	if g.socialURL != "" {
		sources = append(sources, oracle.TypedSource{
			Source:         "social",
			Confidence:     0.6,
			SocialProfiles: []string{g.socialURL},
		})
	}
	return sources
}

// foldExtracted merges extraction output into the cross-referenced record.
func foldExtracted(m *oracle.MergedRecord, e *oracle.ExtractedFields) {
	phoneSeen := map[string]bool{}
	for _, c := range m.Phones {
		phoneSeen[digitsOf(c.Value)] = true
	}
	for _, pn := range e.Phones {
		if key := digitsOf(pn); key != "" && !phoneSeen[key] {
			phoneSeen[key] = true
			m.Phones = append(m.Phones, model.Contact{Value: pn, Source: "extraction", Confidence: e.Confidence})
		}
	}

	emailSeen := map[string]bool{}
	for _, c := range m.Emails {
		emailSeen[strings.ToLower(c.Value)] = true
	}
	for _, em := range e.Emails {
		if key := strings.ToLower(em); !emailSeen[key] {
			emailSeen[key] = true
			m.Emails = append(m.Emails, model.Contact{Value: em, Source: "extraction", Confidence: e.Confidence})
		}
	}

	socialSeen := map[string]bool{}
	for _, s := range m.SocialProfiles {
		socialSeen[strings.ToLower(strings.TrimRight(s, "/"))] = true
	}
	for _, s := range e.SocialProfiles {
		if key := strings.ToLower(strings.TrimRight(s, "/")); !socialSeen[key] {
			socialSeen[key] = true
			m.SocialProfiles = append(m.SocialProfiles, s)
		}
	}

	if m.Address == "" {
		m.Address = e.Address
	}
	if m.Website == "" {
		m.Website = e.Website
	}
}

// assembleLead merges every stage into the final EnrichedLead with
// field-level provenance.
func assembleLead(cand model.Candidate, jc model.JobContext, merged *oracle.MergedRecord, analysis *model.BusinessAnalysis, q *model.Qualification, qualityScore float64) *model.EnrichedLead {
	name := merged.Name
	if name == "" {
		name = cand.Name
	}

	provenance := map[string]model.SourceField{
		"name": {Source: "listing", Confidence: listingConfidence},
	}
	if cand.Address != "" {
		provenance["address"] = model.SourceField{Source: "listing", Confidence: listingConfidence}
	} else if merged.Address != "" {
		provenance["address"] = model.SourceField{Source: "crossref", Confidence: merged.Confidence}
	}
	if cand.Website != "" {
		provenance["website"] = model.SourceField{Source: "listing", Confidence: listingConfidence}
	} else if merged.Website != "" {
		provenance["website"] = model.SourceField{Source: "crossref", Confidence: merged.Confidence}
	}

	website := cand.Website
	if website == "" {
		website = merged.Website
	}
	address := cand.Address
	if address == "" {
		address = merged.Address
	}

	return &model.EnrichedLead{
		Name:           name,
		ListingURL:     cand.ListingURL,
		Address:        address,
		Website:        website,
		Country:        jc.Country,
		Location:       jc.Location,
		Category:       cand.Category,
		Rating:         cand.Rating,
		ReviewCount:    cand.ReviewCount,
		Phones:         merged.Phones,
		Emails:         merged.Emails,
		SocialProfiles: merged.SocialProfiles,
		Analysis:       *analysis,
		Qualification:  *q,
		QualityScore:   qualityScore,
		Provenance:     provenance,
		Confidence:     merged.Confidence,
	}
}

func hitsText(hits []scrape.Hit) string {
	var b strings.Builder
	for _, h := range hits {
		b.WriteString(h.Title)
		b.WriteString("\n")
		b.WriteString(h.URL)
		b.WriteString("\n")
		b.WriteString(h.Snippet)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

var socialHosts = []string{"facebook.com", "instagram.com", "linkedin.com", "tiktok.com", "x.com", "twitter.com"}

func isSocialURL(raw string) bool {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http") {
		return false
	}
	for _, h := range socialHosts {
		if strings.Contains(lower, h+"/") || strings.HasSuffix(lower, h) {
			return true
		}
	}
	return false
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
