package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/climaterisk/sitedeploy/internal/config"
)

func testRules() RuleSet {
	return NewRuleSet(config.Defaults().Rewrite)
}

func TestApply_LocalHostLiteralsBecomeProductionHost(t *testing.T) {
	rules := testRules()
	for _, host := range []string{"localhost:8080", "localhost:3000", "localhost:8000"} {
		t.Run(host, func(t *testing.T) {
			got := rules.Apply("api at "+host+" and ws://"+host+"?x=1", "app.js")
			require.Equal(t, "api at johnnycchung.com and ws://johnnycchung.com?x=1", got)
			require.NotContains(t, got, ":8")
			require.NotContains(t, got, ":3000")
		})
	}
}

func TestApply_RemovesLocalhostURLPrefixes(t *testing.T) {
	rules := testRules()
	in := `fetch("http://localhost:5173/data.json"); fetch("https://localhost:443/api/x")`
	require.Equal(t, `fetch("data.json"); fetch("api/x")`, rules.Apply(in, "main.js"))
}

func TestApply_MarkupRules(t *testing.T) {
	rules := testRules()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"root absolute href", `<a href="/about.html">`, `<a href="about.html">`},
		{"root absolute src", `<img src="/img/logo.png">`, `<img src="img/logo.png">`},
		{"explicit relative", `<a href="./map.html"><script src="./app.js">`, `<a href="map.html"><script src="app.js">`},
		{"repeated explicit relative", `<a href="././x.html">`, `<a href="x.html">`},
		{"slash dot", `<a href="/./x.html">`, `<a href="x.html">`},
		{"protocol relative untouched", `<script src="//cdn.example.com/a.js">`, `<script src="//cdn.example.com/a.js">`},
		{"bare root untouched", `<a href="/">`, `<a href="/">`},
		{"absolute url untouched", `<a href="https://example.com/x">`, `<a href="https://example.com/x">`},
		{"localhost link", `<a href="http://localhost:8080/risk.html">`, `<a href="risk.html">`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, rules.Apply(tt.in, "index.html"))
		})
	}
}

func TestApply_MarkupRulesOnlyForMarkupFiles(t *testing.T) {
	rules := testRules()
	css := `background: url("/img/bg.png"); /* href="/x" */`
	require.Equal(t, css, rules.Apply(css, "style.css"))
	require.Equal(t, `<a href="x">`, rules.Apply(`<a href="/x">`, "PAGE.HTM"))
}

func TestApply_Idempotent(t *testing.T) {
	rules := testRules()
	inputs := []string{
		`<a href="/a.html"><img src="/b.png"><a href="./c"><a href="/">`,
		`<a href="/.//x"><a href=".//y"><script src="//cdn/z.js">`,
		`<link href="http://localhost:8080/style.css"> localhost:3000`,
	}
	for _, in := range inputs {
		once := rules.Apply(in, "index.html")
		require.Equal(t, once, rules.Apply(once, "index.html"), "second pass must be a no-op for %q", in)
	}
}

func TestNewRuleSet_NormalizesExtensions(t *testing.T) {
	rules := NewRuleSet(config.RewriteConfig{
		TextExtensions:   []string{"HTML", " .js ", ""},
		MarkupExtensions: []string{"html"},
	})
	require.Equal(t, []string{".html", ".js"}, rules.TextExtensions)
	require.True(t, rules.IsText("a/b/app.JS"))
	require.False(t, rules.IsText("Makefile"))
	require.True(t, rules.IsMarkup("index.html"))
}

func TestAudit(t *testing.T) {
	findings, err := Audit(`<html><body>
<a href='/single.html'>x</a>
<img src="http://localhost:9999/a.png">
<a href="ok.html">ok</a>
<script src="//cdn.example.com/x.js"></script>
</body></html>`)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	require.Equal(t, Finding{Tag: "a", Attr: "href", Value: "/single.html", Reason: ReasonRootAbsolute}, findings[0])
	require.Equal(t, ReasonLocalhost, findings[1].Reason)
	require.Equal(t, "img", findings[1].Tag)
}
