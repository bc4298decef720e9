package quality

import (
	_ "embed"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatternsYAML []byte

// PatternSet holds the domain lists that classify a site as low quality
// without any network call: social-media presences and low-code site builders.
// A business whose only web presence is one of these is exactly the weak-web
// prospect the product targets.
type PatternSet struct {
	Social   []string `yaml:"social"`
	Builders []string `yaml:"builders"`
}

// LoadDefaultPatterns parses the embedded pattern list.
func LoadDefaultPatterns() (*PatternSet, error) {
	var ps PatternSet
	if err := yaml.Unmarshal(defaultPatternsYAML, &ps); err != nil {
		return nil, eris.Wrap(err, "quality: parse embedded patterns")
	}
	return &ps, nil
}

// Match returns the kind of low-value domain rawURL belongs to ("social" or
// "builder"), or "" when the URL matches neither list.
func (ps *PatternSet) Match(rawURL string) string {
	host := hostOf(rawURL)
	if host == "" {
		return ""
	}
	for _, d := range ps.Social {
		if host == d || strings.HasSuffix(host, "."+d) {
			return "social"
		}
	}
	for _, d := range ps.Builders {
		if host == d || strings.HasSuffix(host, "."+d) {
			return "builder"
		}
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(withScheme(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func withScheme(rawURL string) string {
	if strings.Contains(rawURL, "://") {
		return rawURL
	}
	return "https://" + rawURL
}

// NormalizeURL canonicalizes a URL for cache keying: forced scheme, lowercase
// host without www, no query/fragment, no trailing slash.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(withScheme(strings.TrimSpace(rawURL)))
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(strings.ToLower(rawURL))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	return "https://" + host + path
}
