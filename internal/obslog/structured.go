package obslog

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"
)

// Component/category constants, renamed from the teacher's
// logger/observability.go const blocks to this gateway's component set.
const (
	ComponentOrchestrator   = "orchestrator"
	ComponentStreaming      = "streaming"
	ComponentProviderRouter = "provider_router"
	ComponentReconciler     = "reconciler"
	ComponentStore          = "response_store"
	ComponentVectorSearch   = "vector_search"
	ComponentTranslator     = "translator"
	ComponentTools          = "tools"

	CategoryRequest        = "request"
	CategoryTransformation = "transformation"
	CategorySuccess        = "success"
	CategoryWarning        = "warning"
	CategoryError          = "error"
	CategoryStream         = "stream"
)

// StructuredLogger emits one JSON line per event to a file, for Loki-style
// ingestion — adapted from the teacher's ObservabilityLogger.
type StructuredLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// NewStructuredLogger opens (creating if needed) <logDir>/gateway.jsonl and
// configures a logrus JSON formatter matching the teacher's field mapping.
func NewStructuredLogger(logDir string) (*StructuredLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filepath.Join(logDir, "gateway.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetLevel(logrus.InfoLevel)
	logger = logger.WithField("service", "open-responses-gateway").Logger

	return &StructuredLogger{logger: logger, file: file}, nil
}

// Close flushes and closes the underlying log file.
func (s *StructuredLogger) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

func (s *StructuredLogger) entry(component, category, requestID string, fields map[string]any) *logrus.Entry {
	merged := logrus.Fields{"component": component, "category": category, "request_id": requestID}
	for k, v := range fields {
		merged[k] = v
	}
	return s.logger.WithFields(merged)
}

// Info/Warn/Error write one structured entry at the named level; the
// orchestrators and cmd/gateway's serve command call them directly. Each is
// a no-op on a nil *StructuredLogger.
func (s *StructuredLogger) Info(component, category, requestID, message string, fields map[string]any) {
	if s == nil {
		return
	}
	s.entry(component, category, requestID, fields).Info(message)
}

func (s *StructuredLogger) Warn(component, category, requestID, message string, fields map[string]any) {
	if s == nil {
		return
	}
	s.entry(component, category, requestID, fields).Warn(message)
}

func (s *StructuredLogger) Error(component, category, requestID, message string, fields map[string]any) {
	if s == nil {
		return
	}
	s.entry(component, category, requestID, fields).Error(message)
}

var secretPattern = regexp.MustCompile(`(?i)(bearer\s+|sk-|key[=:]\s*)[a-z0-9\-_.]{8,}`)

// maskSecrets redacts bearer tokens and API-key-shaped substrings from a log
// line before the console Logger (logger.go) prints it, matching the
// teacher's ShouldMaskAPIKeys intent. StructuredLogger entries are not
// passed through it.
func maskSecrets(s string) string {
	return secretPattern.ReplaceAllString(s, "$1***REDACTED***")
}
