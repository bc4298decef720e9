package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePage = `<!DOCTYPE html>
<html><head><title>Springfield Bakery</title>
<style>body { color: red }</style></head>
<body>
<nav><a href="/about">About</a></nav>
<h1>Springfield Bakery</h1>
<p>Fresh bread daily. Call us at (555) 010-0199.</p>
<a href="mailto:orders@springfieldbakery.com">Email us</a>
<a href="tel:+15550100199">Call</a>
<a href="https://www.facebook.com/springfieldbakery">Facebook</a>
<a href="#top">Back to top</a>
<script>trackVisit()</script>
<footer>Copyright 2026</footer>
</body></html>` + strings.Repeat("<!-- pad -->", 50)

func TestLocalScraper_ExtractsTextAndLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	page, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Springfield Bakery", page.Title)
	assert.Contains(t, page.Text, "Fresh bread daily")
	assert.Contains(t, page.Text, "(555) 010-0199")
	assert.NotContains(t, page.Text, "trackVisit", "scripts must be stripped")
	assert.NotContains(t, page.Text, "Copyright", "footer must be stripped")

	assert.Contains(t, page.Links, "mailto:orders@springfieldbakery.com")
	assert.Contains(t, page.Links, "tel:+15550100199")
	assert.Contains(t, page.Links, "https://www.facebook.com/springfieldbakery")
	assert.NotContains(t, page.Links, "#top")
	assert.NotContains(t, page.Links, "/about", "relative links are skipped")
}

func TestLocalScraper_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("not found ", 20), http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestLocalScraper_CloudflareBlockDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cf-ray", "abc123")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(strings.Repeat("checking your browser before accessing ", 10)))
	}))
	defer srv.Close()

	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestDetectBlock_Captcha(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}
	blocked, bt := DetectBlock(resp, []byte("<html>please solve this reCAPTCHA to continue</html>"))
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_CleanPage(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}
	blocked, _ := DetectBlock(resp, []byte(samplePage))
	assert.False(t, blocked)
}
