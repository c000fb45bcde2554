// Package diag provides ambient observability: a status logger used by the
// ring, ingest worker and controller, and an optional read-only websocket
// broadcaster of ring/ingest metrics.
package diag

import "log"

// Logger wraps the standard log package with an enableDebug gate, mirroring
// the teacher's pervasive enableDebug-gated log.Printf call sites.
type Logger struct {
	enableDebug bool
	prefix      string
}

// NewLogger constructs a Logger. When enableDebug is false, Infof calls are
// suppressed; Warnf always logs.
func NewLogger(prefix string, enableDebug bool) *Logger {
	return &Logger{prefix: prefix, enableDebug: enableDebug}
}

// Warnf always logs, regardless of the debug gate.
func (l *Logger) Warnf(format string, args ...interface{}) {
	log.Printf("[WARN] "+l.prefix+format, args...)
}

// Infof logs only when enableDebug is true.
func (l *Logger) Infof(format string, args ...interface{}) {
	if !l.enableDebug {
		return
	}
	log.Printf("[INFO] "+l.prefix+format, args...)
}
