// Package rewrite detects URLs in chat messages and rewrites them to an
// accessible equivalent: a front-end mirror for social posts and an archive
// snapshot link for paywalled sites.
package rewrite

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/paywallbot/internal/sites"
)

// Class is the rewrite decision for a single URL.
type Class int

const (
	Plain Class = iota
	SocialMirror
	Paywall
)

func (c Class) String() string {
	switch c {
	case SocialMirror:
		return "social"
	case Paywall:
		return "paywall"
	default:
		return "plain"
	}
}

// Defaults for Options.
const (
	DefaultMirrorHost    = "xcancel.com"
	DefaultArchivePrefix = "https://archive.is/newest/"
)

// DefaultSocialDomains are the microblogging hosts rewritten to the mirror.
var DefaultSocialDomains = []string{"x.com", "twitter.com"}

// urlPattern matches scheme://non-whitespace, left to right.
var urlPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.\-]*://\S+`)

// PaywallMatcher reports whether a hostname belongs to a paywalled site.
type PaywallMatcher interface {
	Contains(hostname string) bool
}

// Options configures a Rewriter. Zero values select the defaults.
type Options struct {
	SocialDomains []string
	MirrorHost    string
	ArchivePrefix string
}

// Rewriter classifies and rewrites URLs. It holds no mutable state of its own;
// the paywall list is consulted on every call.
type Rewriter struct {
	paywall       PaywallMatcher
	social        map[string]struct{}
	mirrorHost    string
	archivePrefix string
}

func New(paywall PaywallMatcher, opts Options) *Rewriter {
	domains := opts.SocialDomains
	if len(domains) == 0 {
		domains = DefaultSocialDomains
	}
	social := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = sites.CanonicalHost(d)
		if d != "" {
			social[d] = struct{}{}
		}
	}

	mirrorHost := opts.MirrorHost
	if mirrorHost == "" {
		mirrorHost = DefaultMirrorHost
	}
	archivePrefix := opts.ArchivePrefix
	if archivePrefix == "" {
		archivePrefix = DefaultArchivePrefix
	}

	return &Rewriter{
		paywall:       paywall,
		social:        social,
		mirrorHost:    mirrorHost,
		archivePrefix: archivePrefix,
	}
}

// ExtractURLs returns every URL-like substring of text in order of appearance.
// Repeated URLs are returned once per occurrence.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Classify decides how raw should be rewritten. Unparseable URLs and schemes
// other than http(s) are Plain. Social hosts win over the paywall list.
func (r *Rewriter) Classify(raw string) Class {
	u, err := url.Parse(raw)
	if err != nil {
		return Plain
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return Plain
	}

	host := sites.CanonicalHost(u.Hostname())
	if host == "" {
		return Plain
	}
	if _, ok := r.social[host]; ok {
		return SocialMirror
	}
	if r.paywall != nil && r.paywall.Contains(host) {
		return Paywall
	}
	return Plain
}

// mirrorURL swaps the scheme and host of raw for the mirror host, keeping
// path, query and fragment.
func (r *Rewriter) mirrorURL(raw string) string {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+len("://"):]
	}
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[j:]
	} else {
		rest = ""
	}
	return "https://" + r.mirrorHost + rest
}

// archiveURL wraps the original URL, scheme included and unencoded.
func (r *Rewriter) archiveURL(raw string) string {
	return r.archivePrefix + raw
}
