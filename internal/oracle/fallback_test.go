package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

func TestFallbackExtract_HarvestsContacts(t *testing.T) {
	req := ExtractRequest{
		Business: model.Candidate{Name: "Springfield Bakery"},
		Texts: []SourceText{
			{Source: "website", Text: "Call us at (555) 010-0199 or email orders@springfieldbakery.com"},
			{Source: "search", Text: "Find us on https://www.facebook.com/springfieldbakery. Phone: (555) 010-0199."},
		},
	}

	out := FallbackExtract(req)
	require.Len(t, out.Phones, 1, "same number in both texts must dedup")
	assert.Equal(t, []string{"orders@springfieldbakery.com"}, out.Emails)
	require.Len(t, out.SocialProfiles, 1)
	assert.Contains(t, out.SocialProfiles[0], "facebook.com/springfieldbakery")
}

func TestFallbackCrossReference_DedupsAcrossSources(t *testing.T) {
	req := CrossRefRequest{
		Business: model.Candidate{Name: "Springfield Bakery"},
		Sources: []TypedSource{
			{Source: "listing", Confidence: 0.9, Phones: []string{"(555) 010-0199"}, Address: "1 Main St"},
			{Source: "website", Confidence: 0.7, Phones: []string{"555-010-0199"}, Emails: []string{"Orders@Example.com"}},
		},
	}

	out := FallbackCrossReference(req)
	assert.True(t, out.SameBusiness)
	require.Len(t, out.Phones, 1, "differently formatted same number must dedup")
	assert.Equal(t, "listing", out.Phones[0].Source, "first (higher-confidence) source wins")
	require.Len(t, out.Emails, 1)
	assert.Equal(t, "orders@example.com", out.Emails[0].Value)
	assert.Equal(t, "1 Main St", out.Address)
}

func TestFallbackAnalyze_NoWebsite(t *testing.T) {
	out := FallbackAnalyze(AnalyzeRequest{
		Business: model.Candidate{Name: "Springfield Bakery", Category: "bakery"},
	})
	assert.Contains(t, out.Summary, "Springfield Bakery")
	assert.Equal(t, "no website found", out.WebsiteVerdict)
}

func TestFallbackQualify_NoWebsiteWithContactsScoresHigh(t *testing.T) {
	out := FallbackQualify(QualifyRequest{
		Business: model.Candidate{Name: "Bakery", Rating: 4.5},
		Record: MergedRecord{
			Phones: []model.Contact{{Value: "555-0100"}},
			Emails: []model.Contact{{Value: "a@b.com"}},
		},
	})
	// gap 100*0.5 + reach 85*0.3 + rep 90*0.2 = 93.5
	assert.InDelta(t, 93.5, out.Score, 0.1)
	assert.Equal(t, model.TierA, out.Tier)
	assert.Equal(t, "email", out.RecommendedChannel)
}

func TestFallbackQualify_StrongSiteNoContactsScoresLow(t *testing.T) {
	out := FallbackQualify(QualifyRequest{
		Business:     model.Candidate{Name: "Bakery", Website: "https://example.com"},
		QualityScore: 90,
	})
	// gap 10*0.5 = 5
	assert.InDelta(t, 5, out.Score, 0.1)
	assert.Equal(t, model.TierD, out.Tier)
}

func TestFallbackQualify_PhoneOnlyRecommendsPhone(t *testing.T) {
	out := FallbackQualify(QualifyRequest{
		Business: model.Candidate{Name: "Bakery"},
		Record:   MergedRecord{Phones: []model.Contact{{Value: "555-0100"}}},
	})
	assert.Equal(t, "phone", out.RecommendedChannel)
}
