// Package logging configures the process slog logger with correlation ids
// and redaction of session tokens and payer PII.
package logging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// KeySessionToken is the attribute key that is always hashed above debug level.
const KeySessionToken = "session_token"

// KeyCorrelationID is attached to every log line emitted through FromContext.
const KeyCorrelationID = "correlation_id"

var (
	cardPattern  = regexp.MustCompile(`\b[0-9]{13,19}\b`)
	phonePattern = regexp.MustCompile(`(\+?66|0)[\s-]?[0-9]{1,2}[\s-]?[0-9]{3}[\s-]?[0-9]{4}`)
	emailPattern = regexp.MustCompile(`([a-zA-Z0-9._%+-]+)@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

// identifier attributes are never PII-masked; their digit runs are not phone numbers.
var identifierKeys = map[string]bool{
	KeyCorrelationID:  true,
	KeySessionToken:   true,
	"idempotency_key": true,
	"attachment_ref":  true,
}

type ctxKey struct{}

// New builds a JSON logger writing to w at the given level with redaction applied.
func New(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(&redactHandler{next: h})
}

// ParseLevel maps a config string to a slog level; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning", "notice":
		return slog.LevelWarn
	case "error", "critical", "alert", "emergency":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithCorrelationID stores the request correlation id in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext returns the default logger tagged with the request correlation id.
func FromContext(ctx context.Context) *slog.Logger {
	if id := CorrelationID(ctx); id != "" {
		return slog.Default().With(KeyCorrelationID, id)
	}
	return slog.Default()
}

// HashToken renders a session token as sha256:<first 12 hex chars>.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])[:12]
}

// MaskPII masks card-like numbers, Thai phone numbers and the domain of email addresses.
func MaskPII(s string) string {
	s = cardPattern.ReplaceAllString(s, "****-****-****-****")
	s = phonePattern.ReplaceAllString(s, "***-***-****")
	return emailPattern.ReplaceAllString(s, "$1@***")
}

type redactHandler struct {
	next slog.Handler
}

func (h *redactHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, MaskPII(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a, r.Level))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs cannot know the eventual record level, so tokens are always hashed here.
func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = redact(a, slog.LevelInfo)
	}
	return &redactHandler{next: h.next.WithAttrs(masked)}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name)}
}

func redact(a slog.Attr, level slog.Level) slog.Attr {
	v := a.Value.Resolve()
	switch {
	case a.Key == KeySessionToken && level > slog.LevelDebug:
		return slog.String(a.Key, HashToken(v.String()))
	case v.Kind() == slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, g := range group {
			out[i] = redact(g, level)
		}
		return slog.Group(a.Key, out...)
	case v.Kind() == slog.KindString && !identifierKeys[a.Key]:
		return slog.String(a.Key, MaskPII(v.String()))
	}
	return slog.Attr{Key: a.Key, Value: v}
}
