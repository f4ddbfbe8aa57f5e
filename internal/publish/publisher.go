package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/climaterisk/sitedeploy/internal/config"
	derrors "github.com/climaterisk/sitedeploy/internal/errors"
	"github.com/climaterisk/sitedeploy/internal/forge"
	"github.com/climaterisk/sitedeploy/internal/logfields"
	"github.com/climaterisk/sitedeploy/internal/metrics"
)

const (
	cnamePath    = "CNAME"
	cnameMessage = "Add CNAME for custom domain"
)

// Step names used in logs and metrics.
const (
	StepUpload      = "upload"
	StepEnablePages = "enable_pages"
	StepCNAME       = "cname"
	StepUpdatePages = "update_pages"
)

// Client is the subset of the GitHub API the publisher uses.
type Client interface {
	GetContent(ctx context.Context, path, ref string) (*forge.Content, error)
	PutContent(ctx context.Context, path string, body forge.PutContentRequest) (*forge.PutContentResponse, error)
	EnablePages(ctx context.Context, source forge.PagesSource, buildType string) (*forge.PagesSite, error)
	GetPages(ctx context.Context) (*forge.PagesSite, error)
	UpdatePages(ctx context.Context, update forge.PagesUpdate) error
}

// Result describes a completed publish run.
type Result struct {
	RunID          string
	PagesURL       string
	CustomURL      string
	Pages          *forge.PagesSite
	AlreadyEnabled bool
	Uploaded       []string
	Skipped        []string
	Failed         []UploadError
	Duration       time.Duration
}

// UploadError records a manifest entry that could not be uploaded.
type UploadError struct {
	Path string
	Err  error
}

func (e UploadError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e UploadError) Unwrap() error { return e.Err }

// Publisher runs the upload, enable and custom domain steps.
type Publisher struct {
	client   Client
	cfg      config.PagesConfig
	logger   *slog.Logger
	recorder metrics.Recorder
	readFile func(string) ([]byte, error)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Publisher) {
		if r != nil {
			p.recorder = r
		}
	}
}

// New creates a Publisher. client must already carry a credential; callers get
// one from RequireToken before building it.
func New(client Client, cfg config.PagesConfig, opts ...Option) *Publisher {
	p := &Publisher{
		client:   client,
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequireToken returns the credential named by cfg.TokenEnv, or an auth error
// telling the user how to create one. It never touches the network.
func RequireToken(cfg config.PagesConfig) (string, error) {
	name := cfg.TokenEnv
	if name == "" {
		name = "GITHUB_TOKEN"
	}
	token := strings.TrimSpace(cfg.Token())
	if token == "" {
		return "", derrors.AuthError(fmt.Sprintf(
			"%s environment variable not set; create a token with 'repo' scope at https://github.com/settings/tokens and run: export %s=<token>",
			name, name)).
			WithContext("env", name).
			Build()
	}
	return token, nil
}

// Run executes the publish sequence.
func (p *Publisher) Run(ctx context.Context) (*Result, error) {
	if p.client == nil {
		return nil, forge.ErrTokenRequired
	}

	result := &Result{
		RunID:    uuid.NewString(),
		PagesURL: fmt.Sprintf("https://%s.github.io/%s/", p.cfg.Owner, p.cfg.Repo),
	}
	if p.cfg.Domain != "" {
		result.CustomURL = "https://" + p.cfg.Domain
	}
	logger := p.logger.With(logfields.RunID(result.RunID), logfields.Repository(p.cfg.FullName()), logfields.Branch(p.cfg.Branch))
	logger.Info("Publishing site to GitHub Pages")

	start := time.Now()
	err := p.run(ctx, logger, result)
	result.Duration = time.Since(start)
	p.recorder.ObservePublishDuration(result.Duration, err == nil)
	if err != nil {
		logger.Error("Publish failed", logfields.Error(err))
		return result, err
	}
	logger.Info("Publish complete",
		logfields.URL(result.PagesURL),
		logfields.Count(len(result.Uploaded)),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

// run uploads the manifest, then enables Pages and configures the domain.
// A failed upload is recorded and the sequence continues; enable and domain
// failures abort. Upload failures are reported once the sequence is done.
func (p *Publisher) run(ctx context.Context, logger *slog.Logger, result *Result) error {
	if err := p.uploadManifest(ctx, logger, result); err != nil {
		return err
	}
	if err := p.enablePages(ctx, logger, result); err != nil {
		return err
	}
	if err := p.configureDomain(ctx, logger, result); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		errs := make([]error, 0, len(result.Failed))
		paths := make([]string, 0, len(result.Failed))
		for _, f := range result.Failed {
			errs = append(errs, f)
			paths = append(paths, f.Path)
		}
		return derrors.WrapError(errors.Join(errs...), derrors.CategoryForge,
			fmt.Sprintf("%d of %d manifest files failed to upload", len(result.Failed), len(p.cfg.Manifest))).
			WithContext("paths", strings.Join(paths, ",")).Build()
	}
	return nil
}

// uploadManifest returns an error only when ctx is cancelled. Per-file
// failures land in result.Failed.
func (p *Publisher) uploadManifest(ctx context.Context, logger *slog.Logger, result *Result) error {
	for _, entry := range p.cfg.Manifest {
		if err := ctx.Err(); err != nil {
			return derrors.WrapError(err, derrors.CategoryRuntime, "publish cancelled").Build()
		}
		data, err := p.readFile(filepath.Clean(entry.Source))
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("Manifest source not found, skipping", logfields.File(entry.Source))
				result.Skipped = append(result.Skipped, entry.Path)
				p.recorder.IncPublishCall(StepUpload, metrics.ResultSkipped)
				continue
			}
			p.recorder.IncPublishCall(StepUpload, metrics.ResultFailed)
			p.recordFailure(logger, result, entry.Path, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to read manifest source").
				WithContext("path", entry.Source).Build())
			continue
		}

		content := PagesRules(string(data), entry.Path)
		message := entry.Message
		if message == "" {
			message = "Update " + entry.Path
		}
		if err := p.upsert(ctx, logger, StepUpload, entry.Path, []byte(content), message); err != nil {
			p.recordFailure(logger, result, entry.Path, err)
			continue
		}
		result.Uploaded = append(result.Uploaded, entry.Path)
	}
	return nil
}

func (p *Publisher) recordFailure(logger *slog.Logger, result *Result, remotePath string, err error) {
	logger.Error("Manifest upload failed, continuing", logfields.RemotePath(remotePath), logfields.Error(err))
	result.Failed = append(result.Failed, UploadError{Path: remotePath, Err: err})
}

// upsert creates or updates a file. The current version token is included
// when the file can be fetched; any lookup failure means create without one.
func (p *Publisher) upsert(ctx context.Context, logger *slog.Logger, step, remotePath string, content []byte, message string) error {
	log := logger.With(logfields.Step(step), logfields.RemotePath(remotePath))

	var sha string
	existing, err := p.client.GetContent(ctx, remotePath, p.cfg.Branch)
	switch {
	case err == nil && existing != nil:
		sha = existing.SHA
		log.Debug("Updating existing file", slog.String("sha", sha))
	case forge.IsNotFound(err):
		log.Debug("Creating new file")
	default:
		log.Debug("Lookup failed, creating without version token", logfields.Error(err))
	}

	_, err = p.client.PutContent(ctx, remotePath, forge.PutContentRequest{
		Message: message,
		Content: forge.EncodeContent(content),
		SHA:     sha,
		Branch:  p.cfg.Branch,
	})
	if err != nil {
		p.recorder.IncPublishCall(step, metrics.ResultFailed)
		return derrors.WrapError(err, derrors.GetCategory(err), "failed to upload "+remotePath).
			WithContext("remote_path", remotePath).Build()
	}
	p.recorder.IncPublishCall(step, metrics.ResultSuccess)
	log.Info("Uploaded file", slog.Bool("updated", sha != ""))
	return nil
}

func (p *Publisher) enablePages(ctx context.Context, logger *slog.Logger, result *Result) error {
	log := logger.With(logfields.Step(StepEnablePages))
	source := forge.PagesSource{Branch: p.cfg.Branch, Path: p.cfg.Path}
	if source.Path == "" {
		source.Path = "/"
	}

	site, err := p.client.EnablePages(ctx, source, p.cfg.BuildType)
	switch {
	case err == nil:
		p.recorder.IncPublishCall(StepEnablePages, metrics.ResultSuccess)
		log.Info("GitHub Pages enabled")
	case forge.IsConflict(err):
		p.recorder.IncPublishCall(StepEnablePages, metrics.ResultSkipped)
		log.Info("GitHub Pages already enabled, fetching configuration")
		result.AlreadyEnabled = true
		site, err = p.client.GetPages(ctx)
		if err != nil {
			return derrors.WrapError(err, derrors.GetCategory(err), "failed to fetch GitHub Pages configuration").Build()
		}
	default:
		p.recorder.IncPublishCall(StepEnablePages, metrics.ResultFailed)
		return derrors.WrapError(err, derrors.GetCategory(err), "failed to enable GitHub Pages").Build()
	}

	result.Pages = site
	if site != nil && site.HTMLURL != "" {
		result.PagesURL = site.HTMLURL
	}
	log.Info("GitHub Pages configuration", logfields.URL(result.PagesURL), slog.String("pages_status", statusOf(site)))
	return nil
}

func (p *Publisher) configureDomain(ctx context.Context, logger *slog.Logger, result *Result) error {
	if p.cfg.Domain == "" {
		logger.Info("No custom domain configured, skipping CNAME")
		return nil
	}
	if err := p.upsert(ctx, logger, StepCNAME, cnamePath, []byte(p.cfg.Domain), cnameMessage); err != nil {
		return err
	}

	err := p.client.UpdatePages(ctx, forge.PagesUpdate{CNAME: p.cfg.Domain, HTTPSEnforced: true})
	if err != nil {
		p.recorder.IncPublishCall(StepUpdatePages, metrics.ResultFailed)
		return derrors.WrapError(err, derrors.GetCategory(err), "failed to set custom domain").
			WithContext("domain", p.cfg.Domain).Build()
	}
	p.recorder.IncPublishCall(StepUpdatePages, metrics.ResultSuccess)
	logger.Info("Custom domain configured", logfields.Step(StepUpdatePages), logfields.Domain(p.cfg.Domain))
	return nil
}

func statusOf(site *forge.PagesSite) string {
	if site == nil || site.Status == "" {
		return "unknown"
	}
	return site.Status
}
