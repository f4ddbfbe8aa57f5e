package rewrite

import (
	"strings"

	"golang.org/x/net/html"

	derrors "github.com/climaterisk/sitedeploy/internal/errors"
)

// Finding reasons reported by Audit.
const (
	ReasonLocalhost    = "localhost"
	ReasonRootAbsolute = "root-absolute"
)

// Finding is an href or src value that will not resolve on the production host.
type Finding struct {
	Tag    string
	Attr   string
	Value  string
	Reason string
}

// Audit parses markup and lists href/src values that still reference localhost
// or the server root. Values the string rules cannot reach, such as single-quoted
// or unquoted attributes, show up here.
func Audit(content string) ([]Finding, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryRewrite, "failed to parse HTML").Build()
	}

	var findings []Finding
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key != "href" && a.Key != "src" {
					continue
				}
				if reason := classify(a.Val); reason != "" {
					findings = append(findings, Finding{Tag: n.Data, Attr: a.Key, Value: a.Val, Reason: reason})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return findings, nil
}

func classify(val string) string {
	v := strings.TrimSpace(val)
	switch {
	case strings.Contains(strings.ToLower(v), "localhost"):
		return ReasonLocalhost
	case strings.HasPrefix(v, "/") && !strings.HasPrefix(v, "//"):
		return ReasonRootAbsolute
	default:
		return ""
	}
}
