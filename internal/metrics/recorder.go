package metrics

import "time"

// ResultLabel enumerates result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
	ResultCopied  ResultLabel = "copied"
)

// Recorder defines observability hooks. All methods must be safe to call on the
// NoopRecorder so components can take a Recorder unconditionally.
type Recorder interface {
	// IncPreviewRequest counts a preview server response by how it was resolved
	// (file, fallback, not_found, preflight, rejected).
	IncPreviewRequest(outcome string)
	// IncRewriteFile counts one file visited by the rewriter.
	IncRewriteFile(result ResultLabel)
	// IncPublishCall counts one remote call made by the publisher, by step.
	IncPublishCall(step string, result ResultLabel)
	// ObservePublishDuration records the wall time of a whole publish run.
	ObservePublishDuration(d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncPreviewRequest(string)                   {}
func (NoopRecorder) IncRewriteFile(ResultLabel)                 {}
func (NoopRecorder) IncPublishCall(string, ResultLabel)         {}
func (NoopRecorder) ObservePublishDuration(time.Duration, bool) {}
