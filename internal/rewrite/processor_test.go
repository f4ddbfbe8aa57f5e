package rewrite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/climaterisk/sitedeploy/internal/metrics"
)

func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestInPlace(t *testing.T) {
	dir := writeSite(t, map[string]string{
		"index.html":       `<a href="/map.html">map</a>`,
		"pages/risk.html":  `<img src="./img.png">`,
		"js/app.js":        `const api = "http://localhost:8080/api";`,
		"img/logo.png":     "\x89PNG localhost:8080",
		".htaccess":        "stale",
		"notes/readme.txt": "see localhost:3000",
		"unchanged.html":   `<p>plain</p>`,
	})

	report, err := NewProcessor(testRules()).InPlace(context.Background(), dir)
	require.NoError(t, err)
	require.Empty(t, report.Failed)
	require.NotEmpty(t, report.RunID)
	require.Len(t, report.Processed, 5)
	require.Len(t, report.Changed, 4)
	require.Empty(t, report.Copied)

	require.Equal(t, `<a href="map.html">map</a>`, readFile(t, filepath.Join(dir, "index.html")))
	require.Equal(t, `<img src="img.png">`, readFile(t, filepath.Join(dir, "pages", "risk.html")))
	require.Equal(t, `const api = "api";`, readFile(t, filepath.Join(dir, "js", "app.js")))
	require.Equal(t, "see johnnycchung.com", readFile(t, filepath.Join(dir, "notes", "readme.txt")))
	require.Equal(t, "\x89PNG localhost:8080", readFile(t, filepath.Join(dir, "img", "logo.png")))

	require.Equal(t, filepath.Join(dir, ".htaccess"), report.HTAccess)
	require.Equal(t, HTAccess, readFile(t, report.HTAccess))
}

func TestInPlace_ContinuesPastUnreadableFiles(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a.html", "b.html", "c.html", "d.html", "e.html"} {
		files[name] = `<a href="/x.html">`
	}
	dir := writeSite(t, files)

	broken := map[string]bool{"b.html": true, "d.html": true}
	p := NewProcessor(testRules())
	p.readFile = func(path string) ([]byte, error) {
		if broken[filepath.Base(path)] {
			return nil, os.ErrPermission
		}
		return os.ReadFile(path)
	}

	report, err := p.InPlace(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, report.Processed, 3)
	require.Len(t, report.Failed, 2)
	for _, fe := range report.Failed {
		require.True(t, broken[fe.Path], "unexpected failure for %s", fe.Path)
		require.ErrorIs(t, fe, os.ErrPermission)
	}
	require.Equal(t, `<a href="x.html">`, readFile(t, filepath.Join(dir, "a.html")))
	require.Equal(t, `<a href="/x.html">`, readFile(t, filepath.Join(dir, "b.html")))
	require.FileExists(t, filepath.Join(dir, ".htaccess"))
}

func TestInPlace_MissingRoot(t *testing.T) {
	_, err := NewProcessor(testRules()).InPlace(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestInPlace_Cancelled(t *testing.T) {
	dir := writeSite(t, map[string]string{"index.html": `<a href="/x">`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessor(testRules()).InPlace(ctx, dir)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, `<a href="/x">`, readFile(t, filepath.Join(dir, "index.html")))
}

func TestMirror(t *testing.T) {
	src := writeSite(t, map[string]string{
		"index.html":     `<a href="/hurricane-risk-map.html">`,
		"data/risk.json": `{"url":"http://localhost:8000/x"}`,
		"img/logo.png":   "binary localhost:8080",
	})
	dst := filepath.Join(t.TempDir(), "climate_subdirectory")

	report, err := NewProcessor(testRules(), WithHTAccessFile(".htaccess")).Mirror(context.Background(), src, dst)
	require.NoError(t, err)
	require.Empty(t, report.Failed)
	require.Len(t, report.Processed, 2)
	require.Equal(t, []string{filepath.Join("img", "logo.png")}, report.Copied)

	require.Equal(t, `<a href="hurricane-risk-map.html">`, readFile(t, filepath.Join(dst, "index.html")))
	require.Equal(t, `{"url":"x"}`, readFile(t, filepath.Join(dst, "data", "risk.json")))
	require.Equal(t, "binary localhost:8080", readFile(t, filepath.Join(dst, "img", "logo.png")))
	require.Equal(t, HTAccess, readFile(t, filepath.Join(dst, ".htaccess")))

	// source tree is left untouched
	require.Equal(t, `<a href="/hurricane-risk-map.html">`, readFile(t, filepath.Join(src, "index.html")))
	require.NoFileExists(t, filepath.Join(src, ".htaccess"))
}

func TestMirror_RecordsMetrics(t *testing.T) {
	src := writeSite(t, map[string]string{
		"index.html":     `<a href="/map.html">`,
		"data/risk.json": `{}`,
		"img/logo.png":   "binary",
	})
	reg := prom.NewRegistry()
	p := NewProcessor(testRules(), WithRecorder(metrics.NewPrometheusRecorder(reg, metrics.ScopeRewrite)))
	p.readFile = func(path string) ([]byte, error) {
		if filepath.Base(path) == "risk.json" {
			return nil, os.ErrPermission
		}
		return os.ReadFile(path)
	}

	report, err := p.Mirror(context.Background(), src, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)

	expected := `
# HELP sitedeploy_rewrite_files_total Files visited by the path rewriter by result
# TYPE sitedeploy_rewrite_files_total counter
sitedeploy_rewrite_files_total{result="copied"} 1
sitedeploy_rewrite_files_total{result="failed"} 1
sitedeploy_rewrite_files_total{result="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sitedeploy_rewrite_files_total"))
}

func TestMirror_OutputInsideSource(t *testing.T) {
	src := writeSite(t, map[string]string{"index.html": `<a href="/a">`})
	dst := filepath.Join(src, "out")

	p := NewProcessor(testRules())
	_, err := p.Mirror(context.Background(), src, dst)
	require.NoError(t, err)

	report, err := p.Mirror(context.Background(), src, dst)
	require.NoError(t, err)
	for _, rel := range append(report.Processed, report.Copied...) {
		require.False(t, strings.HasPrefix(rel, "out"), "output directory must not be re-walked: %s", rel)
	}
}

func TestInPlace_RecordsAuditFindings(t *testing.T) {
	dir := writeSite(t, map[string]string{"index.html": `<a href='/single.html'>x</a>`})
	report, err := NewProcessor(testRules()).InPlace(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, report.Findings["index.html"], 1)
}
