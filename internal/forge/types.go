package forge

import (
	"encoding/base64"
	"strings"
)

// Content is a file record returned by the repository contents API.
type Content struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	HTMLURL  string `json:"html_url"`
}

// Decode returns the file bytes. GitHub wraps base64 payloads at 60 columns.
func (c *Content) Decode() ([]byte, error) {
	if c.Encoding != "" && c.Encoding != "base64" {
		return []byte(c.Content), nil
	}
	clean := strings.NewReplacer("\n", "", "\r", "").Replace(c.Content)
	return base64.StdEncoding.DecodeString(clean)
}

// PutContentRequest creates or updates a file. SHA must carry the current
// version of the file when it already exists and is omitted otherwise.
type PutContentRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// EncodeContent encodes raw file bytes for PutContentRequest.Content.
func EncodeContent(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Commit is the commit created by a contents write.
type Commit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Message string `json:"message"`
}

// PutContentResponse is returned by PutContent.
type PutContentResponse struct {
	Content *Content `json:"content"`
	Commit  Commit   `json:"commit"`
}

// PagesSource is the branch and directory GitHub Pages publishes from.
type PagesSource struct {
	Branch string `json:"branch"`
	Path   string `json:"path"`
}

// PagesSite is the GitHub Pages configuration of a repository.
type PagesSite struct {
	URL           string       `json:"url"`
	HTMLURL       string       `json:"html_url"`
	Status        string       `json:"status"`
	CNAME         string       `json:"cname"`
	Custom404     bool         `json:"custom_404"`
	HTTPSEnforced bool         `json:"https_enforced"`
	BuildType     string       `json:"build_type"`
	Public        bool         `json:"public"`
	Source        *PagesSource `json:"source,omitempty"`
}

// PagesUpdate changes the custom domain and HTTPS enforcement of a Pages site.
type PagesUpdate struct {
	CNAME         string `json:"cname"`
	HTTPSEnforced bool   `json:"https_enforced"`
}

type enablePagesRequest struct {
	Source    PagesSource `json:"source"`
	BuildType string      `json:"build_type,omitempty"`
}
