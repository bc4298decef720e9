package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const maxBodyBytes = 512 * 1024

// LocalScraper fetches HTML via net/http, detects anti-bot blocks, and
// reduces the document to plaintext with goquery. Free, no API calls; the
// chain falls through to the reader API when this one is blocked.
type LocalScraper struct {
	client *http.Client
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper() *LocalScraper {
	return &LocalScraper{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

func (l *LocalScraper) Name() string { return "local_http" }

func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeadgenBot/1.0)")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}
	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}

	return &Page{
		URL:   targetURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  documentText(doc),
		Links: documentLinks(doc),
	}, nil
}

var spaceRe = regexp.MustCompile(`[ \t]+`)
var newlineRe = regexp.MustCompile(`\n{3,}`)

// documentText strips scripts, styles, and chrome, then collapses whitespace.
func documentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, svg").Remove()
	text := doc.Find("body").Text()
	text = spaceRe.ReplaceAllString(text, " ")
	text = newlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// documentLinks collects absolute hrefs plus mailto/tel targets.
func documentLinks(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if !strings.HasPrefix(href, "http") &&
			!strings.HasPrefix(href, "mailto:") &&
			!strings.HasPrefix(href, "tel:") {
			return
		}
		if seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	return links
}
