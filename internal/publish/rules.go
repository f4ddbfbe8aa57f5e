package publish

import (
	"path/filepath"
	"regexp"
	"strings"
)

// rootAbsoluteAttr matches href/src values that start at the server root. Pages
// serves a project site below /<repo>/, so these are turned into ./ references.
// Protocol-relative values (//host) are left alone.
var rootAbsoluteAttr = regexp.MustCompile(`\b(href|src)=(["'])/([^/])`)

// PagesRules converts root-absolute href/src values in markup to ./ relative
// ones. Content of other files is returned unchanged.
func PagesRules(content, path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return rootAbsoluteAttr.ReplaceAllString(content, `${1}=${2}./${3}`)
	default:
		return content
	}
}
