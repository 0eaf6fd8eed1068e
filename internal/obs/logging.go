package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-affiliate/internal/common"
)

// LogConfig controls logger construction.
type LogConfig struct {
	Format  string
	Level   string
	Service string
	Out     io.Writer
}

// NewLogger configures a zerolog logger. Format "console" or "text" selects
// the human readable writer, anything else emits JSON.
func NewLogger(cfg LogConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Out != nil {
		out = cfg.Out
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if svc := strings.TrimSpace(cfg.Service); svc != "" {
		ctx = ctx.Str("service", svc)
	}
	return ctx.Logger()
}

// RequestLogger records structured HTTP request logs enriched with tracing metadata.
type RequestLogger struct {
	Logger zerolog.Logger
	// SkipPaths are not logged on success; probes and scrapes would drown the output.
	SkipPaths []string
}

func (l RequestLogger) skip(path string, status int) bool {
	if status >= http.StatusBadRequest {
		return false
	}
	for _, p := range l.SkipPaths {
		if p == path {
			return true
		}
	}
	return false
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)

		if l.skip(r.URL.Path, recorder.Status()) {
			return
		}
		level := zerolog.InfoLevel
		switch {
		case recorder.Status() >= http.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case recorder.Status() >= http.StatusBadRequest:
			level = zerolog.WarnLevel
		}
		evt := l.Logger.WithLevel(level).
			Str("method", r.Method).
			Str("route", routeOf(r)).
			Str("path", r.URL.Path).
			Int("status", recorder.Status()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int64("bytes", recorder.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("remote_ip", common.ClientIP(r))
		if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
			evt = evt.Str("trace_id", spanCtx.TraceID().String()).Str("span_id", spanCtx.SpanID().String())
		}
		if principal, ok := common.PrincipalFrom(r.Context()); ok {
			evt = evt.Str("principal_id", principal.ID).Str("role", string(principal.Role))
		}
		if sid, ok := common.SessionID(r.Context()); ok && len(sid) > 8 {
			evt = evt.Str("session", sid[:8])
		}
		if tok := r.URL.Query().Get("affiliate_token"); tok != "" {
			evt = evt.Str("token_prefix", TokenPrefix(tok))
		}
		evt.Msg("http_request")
	})
}

// TokenPrefix returns the first 8 characters of an affiliate token for logs.
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
