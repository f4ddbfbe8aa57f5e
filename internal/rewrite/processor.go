package rewrite

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	derrors "github.com/climaterisk/sitedeploy/internal/errors"
	"github.com/climaterisk/sitedeploy/internal/logfields"
	"github.com/climaterisk/sitedeploy/internal/metrics"
)

// FileError records a per-file failure that did not stop the run.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Report summarizes one processor run. Paths are relative to the walked root.
type Report struct {
	RunID     string
	Processed []string // text files rewritten and written
	Changed   []string // subset of Processed whose content differed
	Copied    []string // non-text files copied verbatim (mirror mode only)
	Failed    []FileError
	Findings  map[string][]Finding
	HTAccess  string // path of the written server configuration file
	Duration  time.Duration
}

// Processor applies a RuleSet to a directory tree.
type Processor struct {
	rules        RuleSet
	htaccessName string
	logger       *slog.Logger
	recorder     metrics.Recorder
	readFile     func(string) ([]byte, error)
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for per-file progress and failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Processor) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithHTAccessFile overrides the name of the generated server configuration file.
func WithHTAccessFile(name string) Option {
	return func(p *Processor) {
		if name != "" {
			p.htaccessName = name
		}
	}
}

// NewProcessor creates a processor for rules.
func NewProcessor(rules RuleSet, opts ...Option) *Processor {
	p := &Processor{
		rules:        rules,
		htaccessName: DefaultHTAccessFile,
		logger:       slog.Default(),
		recorder:     metrics.NoopRecorder{},
		readFile:     os.ReadFile,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InPlace rewrites every text file under dir and writes the server
// configuration into dir. The returned error is non-nil only when dir cannot be
// walked, the context is cancelled, or the configuration file cannot be written.
func (p *Processor) InPlace(ctx context.Context, dir string) (*Report, error) {
	report := p.newReport()
	logger := p.logger.With(logfields.RunID(report.RunID), logfields.Step("prepare"))
	logger.Info("Rewriting site in place", logfields.Path(dir))
	start := time.Now()

	err := p.walk(ctx, logger, report, dir, "", func(path, rel string, d fs.DirEntry) {
		if d.IsDir() || !p.rules.IsText(path) {
			return
		}
		p.rewriteFile(logger, report, path, path, rel)
	})
	if err != nil {
		return report, err
	}

	if err := p.writeHTAccess(logger, report, dir); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)
	p.logSummary(logger, report)
	return report, nil
}

// Mirror recreates the tree under src beneath dst. Text files are rewritten on
// the way, other files are copied byte for byte. If dst lies inside src it is
// excluded from the walk.
func (p *Processor) Mirror(ctx context.Context, src, dst string) (*Report, error) {
	report := p.newReport()
	logger := p.logger.With(logfields.RunID(report.RunID), logfields.Step("subdirectory"))
	logger.Info("Mirroring site", logfields.Path(src), slog.String("output", dst))
	start := time.Now()

	if err := os.MkdirAll(dst, 0o750); err != nil {
		return report, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", dst).Build()
	}

	err := p.walk(ctx, logger, report, src, dst, func(path, rel string, d fs.DirEntry) {
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				p.fail(logger, report, rel, err)
			}
			return
		}
		if p.rules.IsText(path) {
			p.rewriteFile(logger, report, path, target, rel)
			return
		}
		if err := copyFile(path, target); err != nil {
			p.fail(logger, report, rel, err)
			return
		}
		report.Copied = append(report.Copied, rel)
		p.recorder.IncRewriteFile(metrics.ResultCopied)
		logger.Debug("Copied file", logfields.File(rel))
	})
	if err != nil {
		return report, err
	}

	if err := p.writeHTAccess(logger, report, dst); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)
	p.logSummary(logger, report)
	return report, nil
}

func (p *Processor) newReport() *Report {
	return &Report{RunID: uuid.NewString(), Findings: map[string][]Finding{}}
}

// walk visits every entry below root except root itself and the directory
// skip (when non-empty). Unreadable entries are recorded as failures and skipped.
func (p *Processor) walk(ctx context.Context, logger *slog.Logger, report *Report, root, skip string, visit func(path, rel string, d fs.DirEntry)) error {
	info, err := os.Stat(root)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "cannot read site directory").
			WithContext("path", root).Build()
	}
	if !info.IsDir() {
		return derrors.FileSystemError("site path is not a directory").WithContext("path", root).Build()
	}

	var skipAbs string
	if skip != "" {
		skipAbs, _ = filepath.Abs(skip)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if err != nil {
			if path == root {
				return err
			}
			p.fail(logger, report, rel, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if d.IsDir() && skipAbs != "" {
			if abs, _ := filepath.Abs(path); abs == skipAbs {
				return filepath.SkipDir
			}
		}
		if d.Type()&fs.ModeSymlink != 0 {
			logger.Debug("Skipping symlink", logfields.File(rel))
			return nil
		}
		visit(path, rel, d)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return derrors.WrapError(err, derrors.CategoryRuntime, "rewrite cancelled").Build()
		}
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to walk site directory").
			WithContext("path", root).Build()
	}
	return nil
}

// rewriteFile reads src, applies the rule set and writes the result to dst.
func (p *Processor) rewriteFile(logger *slog.Logger, report *Report, src, dst, rel string) {
	data, err := p.readFile(filepath.Clean(src))
	if err != nil {
		p.fail(logger, report, rel, err)
		return
	}

	original := string(data)
	updated := p.rules.Apply(original, rel)

	perm := fs.FileMode(0o644)
	if info, statErr := os.Stat(src); statErr == nil {
		perm = info.Mode().Perm()
	}
	if updated != original || src != dst {
		if err := os.WriteFile(dst, []byte(updated), perm); err != nil {
			p.fail(logger, report, rel, err)
			return
		}
	}

	report.Processed = append(report.Processed, rel)
	if updated != original {
		report.Changed = append(report.Changed, rel)
	}
	p.recorder.IncRewriteFile(metrics.ResultSuccess)
	logger.Debug("Rewrote file", logfields.File(rel), slog.Bool("changed", updated != original))

	if p.rules.IsMarkup(rel) {
		findings, auditErr := Audit(updated)
		if auditErr != nil {
			logger.Debug("Skipping link audit", logfields.File(rel), logfields.Error(auditErr))
			return
		}
		if len(findings) > 0 {
			report.Findings[rel] = findings
			for _, f := range findings {
				logger.Warn("Link will not resolve on production host",
					logfields.File(rel),
					slog.String("attr", f.Attr),
					slog.String("value", f.Value),
					slog.String("reason", f.Reason))
			}
		}
	}
}

func (p *Processor) fail(logger *slog.Logger, report *Report, rel string, err error) {
	report.Failed = append(report.Failed, FileError{Path: rel, Err: err})
	p.recorder.IncRewriteFile(metrics.ResultFailed)
	logger.Error("Failed to process file", logfields.File(rel), logfields.Error(err))
}

func (p *Processor) writeHTAccess(logger *slog.Logger, report *Report, dir string) error {
	target := filepath.Join(dir, p.htaccessName)
	if err := os.WriteFile(target, []byte(HTAccess), 0o644); err != nil { //nolint:gosec // served by Apache, must be world readable
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write server configuration").
			WithContext("path", target).Build()
	}
	report.HTAccess = target
	logger.Info("Wrote server configuration", logfields.Path(target))
	return nil
}

func (p *Processor) logSummary(logger *slog.Logger, report *Report) {
	logger.Info("Rewrite complete",
		logfields.Count(len(report.Processed)),
		slog.Int("changed", len(report.Changed)),
		slog.Int("copied", len(report.Copied)),
		slog.Int("failed", len(report.Failed)),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
