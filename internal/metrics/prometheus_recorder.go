package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Scope selects which metric families a PrometheusRecorder registers.
type Scope string

const (
	ScopePreview Scope = "preview"
	ScopeRewrite Scope = "rewrite"
	ScopePublish Scope = "publish"
)

// PrometheusRecorder implements Recorder using Prometheus metrics. Hooks for
// families outside its scopes are no-ops.
type PrometheusRecorder struct {
	previewRequests *prom.CounterVec
	rewriteFiles    *prom.CounterVec
	publishCalls    *prom.CounterVec
	publishDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs the metric families for scopes and
// registers them on reg. No scopes means all of them.
func NewPrometheusRecorder(reg *prom.Registry, scopes ...Scope) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	if len(scopes) == 0 {
		scopes = []Scope{ScopePreview, ScopeRewrite, ScopePublish}
	}
	pr := &PrometheusRecorder{}
	var collectors []prom.Collector
	for _, scope := range scopes {
		switch scope {
		case ScopePreview:
			pr.previewRequests = prom.NewCounterVec(prom.CounterOpts{
				Namespace: "sitedeploy",
				Name:      "preview_requests_total",
				Help:      "Preview server responses by resolution outcome",
			}, []string{"outcome"})
			collectors = append(collectors, pr.previewRequests)
		case ScopeRewrite:
			pr.rewriteFiles = prom.NewCounterVec(prom.CounterOpts{
				Namespace: "sitedeploy",
				Name:      "rewrite_files_total",
				Help:      "Files visited by the path rewriter by result",
			}, []string{"result"})
			collectors = append(collectors, pr.rewriteFiles)
		case ScopePublish:
			pr.publishCalls = prom.NewCounterVec(prom.CounterOpts{
				Namespace: "sitedeploy",
				Name:      "publish_api_calls_total",
				Help:      "Hosting API calls made by the publisher by step and result",
			}, []string{"step", "result"})
			pr.publishDuration = prom.NewHistogramVec(prom.HistogramOpts{
				Namespace: "sitedeploy",
				Name:      "publish_duration_seconds",
				Help:      "Duration of complete publish runs",
				Buckets:   prom.DefBuckets,
			}, []string{"result"})
			collectors = append(collectors, pr.publishCalls, pr.publishDuration)
		}
	}
	reg.MustRegister(collectors...)
	return pr
}

func (p *PrometheusRecorder) IncPreviewRequest(outcome string) {
	if p == nil || p.previewRequests == nil {
		return
	}
	p.previewRequests.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncRewriteFile(result ResultLabel) {
	if p == nil || p.rewriteFiles == nil {
		return
	}
	p.rewriteFiles.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncPublishCall(step string, result ResultLabel) {
	if p == nil || p.publishCalls == nil {
		return
	}
	p.publishCalls.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePublishDuration(d time.Duration, success bool) {
	if p == nil || p.publishDuration == nil {
		return
	}
	res := string(ResultFailed)
	if success {
		res = string(ResultSuccess)
	}
	p.publishDuration.WithLabelValues(res).Observe(d.Seconds())
}
