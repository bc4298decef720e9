package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonLDPage = `<html><head>
<script type="application/ld+json">
[
  {"@type": "Bakery", "name": "Springfield Bakery", "url": "https://springfieldbakery.example",
   "telephone": "+15550100199",
   "address": {"streetAddress": "1 Main St", "addressLocality": "Springfield"},
   "aggregateRating": {"ratingValue": 4.5, "reviewCount": 120}},
  {"@type": "Bakery", "name": "Dollar Donuts",
   "aggregateRating": {"ratingValue": 2.1, "reviewCount": 8}},
  {"@type": "Bakery", "name": "No Rating Cafe"}
]
</script>
</head><body></body></html>`

const anchorPage = `<html><body>
<a href="/maps/place/springfield-bakery" aria-label="Springfield Bakery · 4.5 stars · 120 reviews">Springfield Bakery</a>
<a href="/maps/place/springfield-bakery" aria-label="Springfield Bakery · 4.5 stars · 120 reviews">dup</a>
<a href="/maps/place/dollar-donuts">Dollar Donuts</a>
<a href="/elsewhere">not a place</a>
</body></html>`

func TestParseListings_JSONLD(t *testing.T) {
	got := parseListings(jsonLDPage, Query{Category: "bakery"})
	require.Len(t, got, 3)
	assert.Equal(t, "Springfield Bakery", got[0].Name)
	assert.Equal(t, "https://springfieldbakery.example", got[0].Website)
	assert.Equal(t, "1 Main St, Springfield", got[0].Address)
	assert.InDelta(t, 4.5, got[0].Rating, 0.01)
	assert.Equal(t, 120, got[0].ReviewCount)
	assert.Equal(t, "bakery", got[0].Category)
}

func TestParseListings_MinRatingFilter(t *testing.T) {
	got := parseListings(jsonLDPage, Query{Category: "bakery", MinRating: 4.0})
	require.Len(t, got, 2, "unrated candidates pass the floor, low-rated ones do not")
	assert.Equal(t, "Springfield Bakery", got[0].Name)
	assert.Equal(t, "No Rating Cafe", got[1].Name)
}

func TestParseListings_MaxResultsCapPreservesOrder(t *testing.T) {
	got := parseListings(jsonLDPage, Query{Category: "bakery", MaxResults: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "Springfield Bakery", got[0].Name)
}

func TestParseListings_AnchorFallback(t *testing.T) {
	got := parseListings(anchorPage, Query{Category: "bakery"})
	require.Len(t, got, 2, "duplicate hrefs and non-place links are dropped")
	assert.Equal(t, "Springfield Bakery", got[0].Name)
	assert.Equal(t, "/maps/place/springfield-bakery", got[0].ListingURL)
	assert.InDelta(t, 4.5, got[0].Rating, 0.01)
	assert.Equal(t, 120, got[0].ReviewCount)
	assert.Equal(t, "Dollar Donuts", got[1].Name)
}

func TestParseListings_GarbageIsEmpty(t *testing.T) {
	assert.Empty(t, parseListings("no markup at all", Query{}))
}

func TestListingURL(t *testing.T) {
	u := listingURL(Query{Category: "bakery", Location: "Springfield", Country: "US"})
	assert.Contains(t, u, "google.com/maps/search/")
	assert.Contains(t, u, "gl=us")
}
