package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/climaterisk/sitedeploy/internal/config"
	derrors "github.com/climaterisk/sitedeploy/internal/errors"
	"github.com/climaterisk/sitedeploy/internal/logfields"
	"github.com/climaterisk/sitedeploy/internal/version"
)

const (
	defaultAPIURL = "https://api.github.com"
	apiVersion    = "2022-11-28"
	// maxErrorBody caps how much of an error response is read for its message.
	maxErrorBody = 64 << 10
)

// GitHubClient talks to the contents and Pages endpoints of one repository.
type GitHubClient struct {
	httpClient *http.Client
	apiURL     string
	owner      string
	repo       string
	userAgent  string
	logger     *slog.Logger
}

// NewGitHubClient creates a client for the repository in cfg. Requests carry the
// token as a bearer credential through an oauth2 transport.
func NewGitHubClient(ctx context.Context, cfg config.PagesConfig, token string) (*GitHubClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrTokenRequired
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, derrors.ValidationError("GitHub owner and repository are required").Build()
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid GitHub API URL").
			WithContext("api_url", apiURL).Build()
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = 30 * time.Second

	return &GitHubClient{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		userAgent:  "sitedeploy/" + version.Version,
		logger:     slog.Default(),
	}, nil
}

// WithLogger returns the client with a different logger.
func (c *GitHubClient) WithLogger(l *slog.Logger) *GitHubClient {
	if l != nil {
		c.logger = l
	}
	return c
}

// Repository returns owner/repo.
func (c *GitHubClient) Repository() string { return c.owner + "/" + c.repo }

// GetContent fetches a file record. ref selects the branch; empty means the
// default branch.
func (c *GitHubClient) GetContent(ctx context.Context, filePath, ref string) (*Content, error) {
	q := url.Values{}
	if ref != "" {
		q.Set("ref", ref)
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.contentsEndpoint(filePath), q, nil)
	if err != nil {
		return nil, err
	}
	var content Content
	if err := c.doRequest(req, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// PutContent creates or updates a file record in a single commit.
func (c *GitHubClient) PutContent(ctx context.Context, filePath string, body PutContentRequest) (*PutContentResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPut, c.contentsEndpoint(filePath), nil, body)
	if err != nil {
		return nil, err
	}
	var resp PutContentResponse
	if err := c.doRequest(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnablePages turns on GitHub Pages for source. A site that is already enabled
// yields an APIError with status 409.
func (c *GitHubClient) EnablePages(ctx context.Context, source PagesSource, buildType string) (*PagesSite, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.repoEndpoint("pages"), nil, enablePagesRequest{
		Source:    source,
		BuildType: buildType,
	})
	if err != nil {
		return nil, err
	}
	var site PagesSite
	if err := c.doRequest(req, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// GetPages returns the current Pages configuration.
func (c *GitHubClient) GetPages(ctx context.Context) (*PagesSite, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.repoEndpoint("pages"), nil, nil)
	if err != nil {
		return nil, err
	}
	var site PagesSite
	if err := c.doRequest(req, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// UpdatePages sets the custom domain and HTTPS enforcement. GitHub answers 204.
func (c *GitHubClient) UpdatePages(ctx context.Context, update PagesUpdate) error {
	req, err := c.newRequest(ctx, http.MethodPut, c.repoEndpoint("pages"), nil, update)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

func (c *GitHubClient) repoEndpoint(parts ...string) string {
	return path.Join(append([]string{"/repos", c.owner, c.repo}, parts...)...)
}

func (c *GitHubClient) contentsEndpoint(filePath string) string {
	return c.repoEndpoint("contents", strings.TrimPrefix(filePath, "/"))
}

func (c *GitHubClient) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Request, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid GitHub API URL").Build()
	}
	u.Path = path.Join(u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryInternal, "failed to encode request body").Build()
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryInternal, "failed to build request").Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *GitHubClient) doRequest(req *http.Request, result any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryNetwork, "GitHub API request failed").
			WithContext("method", req.Method).
			WithContext("endpoint", req.URL.Path).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("GitHub API call",
		logfields.Method(req.Method),
		logfields.URL(req.URL.Path),
		logfields.Status(resp.StatusCode),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     req.Method,
			Endpoint:   req.URL.Path,
		}
		var payload struct {
			Message          string `json:"message"`
			DocumentationURL string `json:"documentation_url"`
		}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); readErr == nil && len(data) > 0 {
			if json.Unmarshal(data, &payload) == nil {
				apiErr.Message = payload.Message
				apiErr.DocumentationURL = payload.DocumentationURL
			}
		}
		return classify(apiErr)
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryNetwork, "failed to read GitHub response").Build()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return derrors.WrapError(err, derrors.CategoryForge, "failed to decode GitHub response").
			WithContext("endpoint", req.URL.Path).Build()
	}
	return nil
}
