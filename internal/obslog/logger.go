// Package obslog provides the gateway's console-facing leveled logger,
// adapted from the teacher's logger.ContextLogger: request-id-aware,
// field-chainable, emoji-tagged console output for human operators.
// Structured JSON logs for machine ingestion live alongside in structured.go.
package obslog

import (
	"context"
	"fmt"
	"log"

	"github.com/masaic-ai/open-responses-go/internal/reqctx"
)

// Level is the console logger's severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) emoji() string {
	switch l {
	case Debug:
		return "🔍"
	case Info:
		return "ℹ️"
	case Warn:
		return "⚠️"
	case Error:
		return "❌"
	default:
		return "📝"
	}
}

// Logger is the gateway's console logger interface.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	WithComponent(component string) Logger
	WithField(key, value string) Logger
}

// Config controls minimum level and whether secrets are masked in output.
type Config struct {
	MinLevel    Level
	MaskSecrets bool
}

type contextLogger struct {
	ctx       context.Context
	cfg       Config
	component string
	fields    map[string]string
}

// New returns a Logger bound to ctx, so every line it emits is prefixed with
// the request ID carried in ctx (per reqctx.RequestID).
func New(ctx context.Context, cfg Config) Logger {
	return &contextLogger{ctx: ctx, cfg: cfg, fields: map[string]string{}}
}

func (l *contextLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

func (l *contextLogger) WithField(key, value string) Logger {
	newFields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value
	clone := *l
	clone.fields = newFields
	return &clone
}

func (l *contextLogger) Debug(format string, args ...any) { l.log(Debug, format, args...) }
func (l *contextLogger) Info(format string, args ...any)  { l.log(Info, format, args...) }
func (l *contextLogger) Warn(format string, args ...any)  { l.log(Warn, format, args...) }
func (l *contextLogger) Error(format string, args ...any) { l.log(Error, format, args...) }

func (l *contextLogger) log(level Level, format string, args ...any) {
	if level < l.cfg.MinLevel {
		return
	}
	requestID := reqctx.RequestID(l.ctx)
	msg := fmt.Sprintf(format, args...)
	if l.cfg.MaskSecrets {
		msg = maskSecrets(msg)
	}
	prefix := fmt.Sprintf("%s[%s]", level.emoji(), requestID)
	if l.component != "" {
		prefix += fmt.Sprintf("[%s]", l.component)
	}
	log.Printf("%s %s", prefix, msg)
}
