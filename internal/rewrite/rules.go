package rewrite

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/climaterisk/sitedeploy/internal/config"
)

var (
	localhostPrefix = regexp.MustCompile(`https?://localhost:\d+/`)
	// explicitRelative matches href="./ and src="./, including repeated ./ segments.
	explicitRelative = regexp.MustCompile(`\b(href|src)="(?:\./)+`)
	// rootAbsolute matches a single leading slash followed by a path segment.
	// Protocol-relative values (//host) and the bare root "/" do not match.
	// href="/" stays as is; stripping it would leave href="", which links to
	// the current page instead of the site root.
	rootAbsolute = regexp.MustCompile(`\b(href|src)="/(?:\./)*([^/"])`)
)

// maxMarkupPasses bounds the fixed-point loop in applyMarkup. Every pass that
// changes the content makes it shorter, so the loop terminates long before this.
const maxMarkupPasses = 16

// RuleSet is the ordered substitution list for one hosting target.
type RuleSet struct {
	ProductionHost   string
	LocalHosts       []string
	TextExtensions   []string
	MarkupExtensions []string
}

// NewRuleSet builds the rule set described by the rewrite configuration.
func NewRuleSet(cfg config.RewriteConfig) RuleSet {
	return RuleSet{
		ProductionHost:   cfg.ProductionHost,
		LocalHosts:       slices.Clone(cfg.LocalHosts),
		TextExtensions:   normalizeExts(cfg.TextExtensions),
		MarkupExtensions: normalizeExts(cfg.MarkupExtensions),
	}
}

// IsText reports whether path has one of the rule set's text extensions.
func (r RuleSet) IsText(path string) bool {
	return hasExt(r.TextExtensions, path)
}

// IsMarkup reports whether path is a markup file that gets the href/src rules.
func (r RuleSet) IsMarkup(path string) bool {
	return hasExt(r.MarkupExtensions, path)
}

// Apply runs every rule over content in order. path only selects which rules
// apply; it is never read.
func (r RuleSet) Apply(content, path string) string {
	content = localhostPrefix.ReplaceAllString(content, "")

	if r.ProductionHost != "" {
		for _, h := range r.LocalHosts {
			if h == "" {
				continue
			}
			content = strings.ReplaceAll(content, h, r.ProductionHost)
		}
	}

	if r.IsMarkup(path) {
		content = applyMarkup(content)
	}
	return content
}

func applyMarkup(content string) string {
	for range maxMarkupPasses {
		next := explicitRelative.ReplaceAllString(content, `${1}="`)
		next = rootAbsolute.ReplaceAllString(next, `${1}="${2}`)
		if next == content {
			break
		}
		content = next
	}
	return content
}

func hasExt(exts []string, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	return slices.Contains(exts, ext)
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
