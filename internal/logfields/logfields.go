package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStep       = "step"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyRemotePath = "remote_path"
	KeyRepo       = "repository"
	KeyBranch     = "branch"
	KeyDomain     = "domain"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyURL        = "url"
	KeyPort       = "port"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyOutcome    = "outcome"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr { return slog.String(KeyRunID, id) }
func Step(s string) slog.Attr { return slog.String(KeyStep, s) }
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }
func File(f string) slog.Attr { return slog.String(KeyFile, f) }
func RemotePath(p string) slog.Attr { return slog.String(KeyRemotePath, p) }
func Repository(r string) slog.Attr { return slog.String(KeyRepo, r) }
func Branch(b string) slog.Attr { return slog.String(KeyBranch, b) }
func Domain(d string) slog.Attr { return slog.String(KeyDomain, d) }
func Method(m string) slog.Attr { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }
func URL(u string) slog.Attr { return slog.String(KeyURL, u) }
func Port(p int) slog.Attr { return slog.Int(KeyPort, p) }
func UserAgent(ua string) slog.Attr { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func Outcome(o string) slog.Attr { return slog.String(KeyOutcome, o) }
func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
