package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/climaterisk/sitedeploy/internal/config"
	derrors "github.com/climaterisk/sitedeploy/internal/errors"
	"github.com/climaterisk/sitedeploy/internal/forge"
	"github.com/climaterisk/sitedeploy/internal/metrics"
)

type putCall struct {
	Path string
	Body forge.PutContentRequest
}

type fakeClient struct {
	existing   map[string]string // remote path -> sha
	lookupErr  error
	putErr     map[string]error
	enableErr  error
	pages      *forge.PagesSite
	updateErr  error
	calls      []string
	puts       []putCall
	updates    []forge.PagesUpdate
	getPagesOK bool
}

func (f *fakeClient) GetContent(_ context.Context, path, ref string) (*forge.Content, error) {
	f.calls = append(f.calls, "get:"+path+"@"+ref)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if sha, ok := f.existing[path]; ok {
		return &forge.Content{Path: path, SHA: sha}, nil
	}
	return nil, &forge.APIError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
}

func (f *fakeClient) PutContent(_ context.Context, path string, body forge.PutContentRequest) (*forge.PutContentResponse, error) {
	f.calls = append(f.calls, "put:"+path)
	if err := f.putErr[path]; err != nil {
		return nil, err
	}
	f.puts = append(f.puts, putCall{Path: path, Body: body})
	return &forge.PutContentResponse{}, nil
}

func (f *fakeClient) EnablePages(context.Context, forge.PagesSource, string) (*forge.PagesSite, error) {
	f.calls = append(f.calls, "enable")
	if f.enableErr != nil {
		return nil, f.enableErr
	}
	return f.pages, nil
}

func (f *fakeClient) GetPages(context.Context) (*forge.PagesSite, error) {
	f.calls = append(f.calls, "get-pages")
	f.getPagesOK = true
	return f.pages, nil
}

func (f *fakeClient) UpdatePages(_ context.Context, update forge.PagesUpdate) error {
	f.calls = append(f.calls, "update")
	f.updates = append(f.updates, update)
	return f.updateErr
}

func testPagesConfig(t *testing.T) config.PagesConfig {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}
	return config.PagesConfig{
		Owner:     "octo",
		Repo:      "site",
		Branch:    "main",
		Path:      "/",
		BuildType: "legacy",
		Domain:    "climate.example.com",
		Manifest: []config.ManifestEntry{
			{Source: write("index.html", `<a href="/map.html">`), Path: "index.html", Message: "Update index"},
			{Source: write("notes.md", `# notes`), Path: "notes.md", Message: "Add notes"},
		},
	}
}

func decodePut(t *testing.T, c putCall) string {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(c.Body.Content)
	require.NoError(t, err)
	return string(data)
}

func TestRun_CreateOrUpdate(t *testing.T) {
	cfg := testPagesConfig(t)
	client := &fakeClient{
		existing: map[string]string{"index.html": "sha-index"},
		pages:    &forge.PagesSite{HTMLURL: "https://octo.github.io/site/", Status: "built"},
	}

	result, err := New(client, cfg).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, client.puts, 3)
	require.Equal(t, "index.html", client.puts[0].Path)
	require.Equal(t, "sha-index", client.puts[0].Body.SHA, "existing record must be updated with its version token")
	require.Equal(t, "main", client.puts[0].Body.Branch)
	require.Equal(t, `<a href="./map.html">`, decodePut(t, client.puts[0]))

	require.Equal(t, "notes.md", client.puts[1].Path)
	require.Empty(t, client.puts[1].Body.SHA, "missing record must be created without a version token")
	require.Equal(t, "# notes", decodePut(t, client.puts[1]))

	require.Equal(t, "CNAME", client.puts[2].Path)
	require.Equal(t, "climate.example.com", decodePut(t, client.puts[2]))
	require.Equal(t, "Add CNAME for custom domain", client.puts[2].Body.Message)

	require.Equal(t, []forge.PagesUpdate{{CNAME: "climate.example.com", HTTPSEnforced: true}}, client.updates)
	require.False(t, client.getPagesOK)

	require.Equal(t, []string{"index.html", "notes.md"}, result.Uploaded)
	require.Equal(t, "https://octo.github.io/site/", result.PagesURL)
	require.Equal(t, "https://climate.example.com", result.CustomURL)
	require.NotEmpty(t, result.RunID)
}

func TestRun_LookupFailureOmitsToken(t *testing.T) {
	cfg := testPagesConfig(t)
	client := &fakeClient{
		existing:  map[string]string{"index.html": "sha-index"},
		lookupErr: errors.New("connection reset"),
	}

	_, err := New(client, cfg).Run(context.Background())
	require.NoError(t, err)
	for _, put := range client.puts {
		require.Empty(t, put.Body.SHA, "lookup failure must fall back to create for %s", put.Path)
	}
}

func TestRun_EnableConflictFetchesConfiguration(t *testing.T) {
	cfg := testPagesConfig(t)
	client := &fakeClient{
		enableErr: &forge.APIError{StatusCode: http.StatusConflict, Status: "409 Conflict"},
		pages:     &forge.PagesSite{HTMLURL: "https://octo.github.io/site/", Status: "built", CNAME: "old.example.com"},
	}

	result, err := New(client, cfg).Run(context.Background())
	require.NoError(t, err)
	require.True(t, client.getPagesOK)
	require.True(t, result.AlreadyEnabled)
	require.Equal(t, "old.example.com", result.Pages.CNAME)
	require.Contains(t, client.calls, "update")
}

func TestRun_EnableFailureAborts(t *testing.T) {
	cfg := testPagesConfig(t)
	client := &fakeClient{
		enableErr: &forge.APIError{StatusCode: http.StatusUnprocessableEntity, Status: "422 Unprocessable Entity"},
	}

	_, err := New(client, cfg).Run(context.Background())
	require.Error(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, forge.StatusCode(err))
	require.False(t, client.getPagesOK)
	require.NotContains(t, client.calls, "update")
	require.Len(t, client.puts, 2, "uploads already made are not rolled back")
}

func TestRun_UploadFailureContinues(t *testing.T) {
	cfg := testPagesConfig(t)
	client := &fakeClient{
		putErr: map[string]error{"index.html": &forge.APIError{StatusCode: http.StatusForbidden, Status: "403 Forbidden"}},
	}

	result, err := New(client, cfg).Run(context.Background())
	require.Error(t, err, "a failed upload still fails the run")
	require.Contains(t, err.Error(), "1 of 2 manifest files failed to upload")
	require.Equal(t, http.StatusForbidden, forge.StatusCode(err))

	require.Equal(t, []string{
		"get:index.html@main", "put:index.html",
		"get:notes.md@main", "put:notes.md",
		"enable",
		"get:CNAME@main", "put:CNAME",
		"update",
	}, client.calls)
	require.Equal(t, []string{"notes.md"}, result.Uploaded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "index.html", result.Failed[0].Path)
}

func TestRun_UnreadableSourceContinues(t *testing.T) {
	cfg := testPagesConfig(t)
	p := New(&fakeClient{}, cfg)
	readFile := p.readFile
	p.readFile = func(name string) ([]byte, error) {
		if filepath.Base(name) == "index.html" {
			return nil, os.ErrPermission
		}
		return readFile(name)
	}

	result, err := p.Run(context.Background())
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryForge))
	require.Equal(t, []string{"notes.md"}, result.Uploaded)
	require.Len(t, result.Failed, 1)
	require.ErrorIs(t, result.Failed[0], os.ErrPermission)
}

func TestRun_RecordsMetrics(t *testing.T) {
	cfg := testPagesConfig(t)
	cfg.Manifest = append(cfg.Manifest, config.ManifestEntry{Source: filepath.Join(t.TempDir(), "gone.html"), Path: "gone.html"})
	client := &fakeClient{
		putErr:    map[string]error{"notes.md": &forge.APIError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}},
		enableErr: &forge.APIError{StatusCode: http.StatusConflict, Status: "409 Conflict"},
	}
	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg, metrics.ScopePublish)

	_, err := New(client, cfg, WithRecorder(recorder)).Run(context.Background())
	require.Error(t, err)

	expected := `
# HELP sitedeploy_publish_api_calls_total Hosting API calls made by the publisher by step and result
# TYPE sitedeploy_publish_api_calls_total counter
sitedeploy_publish_api_calls_total{result="failed",step="upload"} 1
sitedeploy_publish_api_calls_total{result="skipped",step="enable_pages"} 1
sitedeploy_publish_api_calls_total{result="skipped",step="upload"} 1
sitedeploy_publish_api_calls_total{result="success",step="cname"} 1
sitedeploy_publish_api_calls_total{result="success",step="update_pages"} 1
sitedeploy_publish_api_calls_total{result="success",step="upload"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sitedeploy_publish_api_calls_total"))
	n, err := testutil.GatherAndCount(reg, "sitedeploy_publish_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRun_MissingSourceIsSkipped(t *testing.T) {
	cfg := testPagesConfig(t)
	cfg.Manifest = append(cfg.Manifest, config.ManifestEntry{Source: filepath.Join(t.TempDir(), "gone.html"), Path: "gone.html"})
	client := &fakeClient{}

	result, err := New(client, cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"gone.html"}, result.Skipped)
	require.Len(t, result.Uploaded, 2)
}

func TestRun_NoDomainSkipsCNAME(t *testing.T) {
	cfg := testPagesConfig(t)
	cfg.Domain = ""
	client := &fakeClient{}

	result, err := New(client, cfg).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.CustomURL)
	require.NotContains(t, client.calls, "update")
	require.Len(t, client.puts, 2)
}

func TestRequireToken(t *testing.T) {
	cfg := config.PagesConfig{TokenEnv: "SITEDEPLOY_TEST_TOKEN"}

	t.Setenv("SITEDEPLOY_TEST_TOKEN", "")
	_, err := RequireToken(cfg)
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryAuth))
	require.Contains(t, err.Error(), "https://github.com/settings/tokens")
	require.Contains(t, err.Error(), "export SITEDEPLOY_TEST_TOKEN=")

	t.Setenv("SITEDEPLOY_TEST_TOKEN", "ghp_example")
	token, err := RequireToken(cfg)
	require.NoError(t, err)
	require.Equal(t, "ghp_example", token)
}

func TestRun_AgainstGitHubAPI(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	var cnameSHA any = "unset"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/octo/site/contents/CNAME":
			_, _ = io.WriteString(w, `{"path":"CNAME","sha":"cname-sha"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/repos/octo/site/pages":
			_, _ = io.WriteString(w, `{"html_url":"https://octo.github.io/site/","status":"built"}`)
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Not Found"}`)
		case r.Method == http.MethodPut && r.URL.Path == "/repos/octo/site/contents/CNAME":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			cnameSHA = body["sha"]
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, `{"content":{"path":"CNAME"}}`)
		case r.Method == http.MethodPut && r.URL.Path == "/repos/octo/site/pages":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"content":{}}`)
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"message":"GitHub Pages is already enabled."}`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	cfg := testPagesConfig(t)
	cfg.APIURL = srv.URL
	client, err := forge.NewGitHubClient(context.Background(), cfg, "token")
	require.NoError(t, err)

	result, err := New(client, cfg).Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.AlreadyEnabled)
	require.Equal(t, "cname-sha", cnameSHA)
	require.Contains(t, seen, "GET /repos/octo/site/pages")
	require.Equal(t, "PUT /repos/octo/site/pages", seen[len(seen)-1])
}
