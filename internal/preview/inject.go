package preview

import (
	"bytes"
	"net/http"
	"strings"
)

// maxInjectSize is the largest HTML body buffered for script injection.
const maxInjectSize = 512 * 1024

// injectLiveReload adds the live reload client to HTML responses before </body>.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.Header.Get("Range") != "" {
			next.ServeHTTP(w, r)
			return
		}
		injector := &liveReloadInjector{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(injector, r)
		injector.finalize()
	})
}

// liveReloadInjector buffers an HTML response so the client script can be
// inserted. Non-HTML and oversized bodies are passed through untouched.
type liveReloadInjector struct {
	http.ResponseWriter
	statusCode    int
	buffer        []byte
	headerWritten bool
	passthrough   bool
}

func (l *liveReloadInjector) WriteHeader(code int) {
	l.statusCode = code
	if l.passthrough {
		l.ResponseWriter.WriteHeader(code)
		l.headerWritten = true
	}
}

func (l *liveReloadInjector) Write(data []byte) (int, error) {
	if !l.headerWritten && !l.passthrough && l.buffer == nil {
		if !strings.Contains(l.Header().Get("Content-Type"), "text/html") || l.statusCode != http.StatusOK {
			l.startPassthrough()
			return l.ResponseWriter.Write(data)
		}
		l.buffer = make([]byte, 0, 64*1024)
	}
	if l.passthrough {
		return l.ResponseWriter.Write(data)
	}

	if len(l.buffer)+len(data) > maxInjectSize {
		l.startPassthrough()
		if len(l.buffer) > 0 {
			if _, err := l.ResponseWriter.Write(l.buffer); err != nil {
				return 0, err
			}
			l.buffer = nil
		}
		return l.ResponseWriter.Write(data)
	}

	l.buffer = append(l.buffer, data...)
	return len(data), nil
}

func (l *liveReloadInjector) startPassthrough() {
	l.passthrough = true
	l.ResponseWriter.WriteHeader(l.statusCode)
	l.headerWritten = true
}

// finalize must run after the wrapped handler returns.
func (l *liveReloadInjector) finalize() {
	if l.passthrough {
		return
	}
	if len(l.buffer) == 0 {
		if !l.headerWritten {
			l.ResponseWriter.WriteHeader(l.statusCode)
		}
		return
	}

	body := l.buffer
	if i := bytes.LastIndex(bytes.ToLower(body), []byte("</body>")); i >= 0 {
		out := make([]byte, 0, len(body)+len(liveReloadScript))
		out = append(out, body[:i]...)
		out = append(out, liveReloadScript...)
		out = append(out, body[i:]...)
		body = out
	}

	l.Header().Del("Content-Length")
	l.ResponseWriter.WriteHeader(l.statusCode)
	_, _ = l.ResponseWriter.Write(body)
}
