// Package history prevents re-spending API and LLM budget on businesses
// that were already evaluated by a previous job.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// Verdict is the dedup decision for a candidate.
type Verdict int

const (
	// VerdictNew means the candidate was never evaluated.
	VerdictNew Verdict = iota
	// VerdictSkip means the candidate was rejected or already converted;
	// re-analysis would waste budget.
	VerdictSkip
	// VerdictRetry means the candidate was accepted before but never became
	// a lead, so another conversion attempt is worthwhile.
	VerdictRetry
)

// Recorder is the slice of the store the history layer needs.
type Recorder interface {
	UpsertAnalyzed(ctx context.Context, rec model.AnalyzedBusinessRecord) error
	GetAnalyzed(ctx context.Context, identity string) (*model.AnalyzedBusinessRecord, error)
}

// History deduplicates candidates against the analyzed-business table.
type History struct {
	store  Recorder
	folder cases.Caser
}

func New(store Recorder) *History {
	return &History{
		store:  store,
		folder: cases.Lower(language.Und),
	}
}

// Identity derives the stable dedup key for a candidate: the listing URL when
// present, otherwise a casefolded name|location|country tuple.
func (h *History) Identity(cand model.Candidate, jc model.JobContext) string {
	if u := strings.TrimSpace(cand.ListingURL); u != "" {
		return u
	}
	parts := []string{cand.Name, jc.Location, jc.Country}
	for i, p := range parts {
		parts[i] = h.folder.String(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// Check returns the dedup verdict for an identity, plus the prior record when
// one exists.
func (h *History) Check(ctx context.Context, identity string) (Verdict, *model.AnalyzedBusinessRecord, error) {
	rec, err := h.store.GetAnalyzed(ctx, identity)
	if err != nil {
		return VerdictNew, nil, eris.Wrapf(err, "history: check %s", identity)
	}
	if rec == nil {
		return VerdictNew, nil, nil
	}
	if rec.Converted {
		return VerdictSkip, rec, nil
	}
	if !rec.Prospect {
		return VerdictSkip, rec, nil
	}
	return VerdictRetry, rec, nil
}

// RecordRejection marks an identity as evaluated and rejected.
func (h *History) RecordRejection(ctx context.Context, identity string, cand model.Candidate, jc model.JobContext, reason string, qualityScore float64) error {
	return h.record(ctx, model.AnalyzedBusinessRecord{
		Identity:     identity,
		Name:         cand.Name,
		Location:     jc.Location,
		Country:      jc.Country,
		Prospect:     false,
		SkipReason:   reason,
		QualityScore: qualityScore,
	})
}

// RecordProspect marks an identity as accepted but not yet converted.
func (h *History) RecordProspect(ctx context.Context, identity string, cand model.Candidate, jc model.JobContext, qualityScore float64) error {
	return h.record(ctx, model.AnalyzedBusinessRecord{
		Identity:     identity,
		Name:         cand.Name,
		Location:     jc.Location,
		Country:      jc.Country,
		Prospect:     true,
		QualityScore: qualityScore,
	})
}

// RecordConverted marks an identity as converted into a persisted lead.
func (h *History) RecordConverted(ctx context.Context, identity string, cand model.Candidate, jc model.JobContext, qualityScore float64, leadID string) error {
	return h.record(ctx, model.AnalyzedBusinessRecord{
		Identity:     identity,
		Name:         cand.Name,
		Location:     jc.Location,
		Country:      jc.Country,
		Prospect:     true,
		QualityScore: qualityScore,
		Converted:    true,
		LeadID:       leadID,
	})
}

func (h *History) record(ctx context.Context, rec model.AnalyzedBusinessRecord) error {
	rec.AnalyzedAt = time.Now().UTC()
	return eris.Wrapf(h.store.UpsertAnalyzed(ctx, rec), "history: record %s", rec.Identity)
}
