// Package logx provides structured logging for the meshforged daemon.
package logx

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// syslogWriter is satisfied by *syslog.Writer on Unix; the Windows build
// never constructs one so the field stays nil there.
type syslogWriter interface {
	Debug(string) error
	Info(string) error
	Warning(string) error
	Err(string) error
}

// Logger provides structured JSON logging.
type Logger struct {
	level     LogLevel
	logger    *log.Logger
	syslogger syslogWriter
	fields    map[string]interface{}
}

// New creates a new structured logger.
func New(levelStr string) *Logger {
	l := &Logger{
		level:  parseLevel(levelStr),
		logger: log.New(os.Stdout, "", 0), // no prefix, everything is JSON
		fields: make(map[string]interface{}),
	}
	l.initSyslog()
	return l
}

// NewWithFields creates a logger with persistent contextual fields.
func NewWithFields(levelStr string, fields map[string]interface{}) *Logger {
	l := New(levelStr)
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// WithFields returns a new logger with additional persistent fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &Logger{
		level:     l.level,
		logger:    l.logger,
		syslogger: l.syslogger,
		fields:    newFields,
	}
}

// WithField returns a new logger with an additional persistent field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel changes the logging level.
func (l *Logger) SetLevel(levelStr string) {
	l.level = parseLevel(levelStr)
}

func parseLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// log outputs a structured log entry with fields flattened at the top level.
func (l *Logger) log(level LogLevel, msg string, keysAndValues ...interface{}) {
	if level < l.level {
		return
	}

	entry := make(map[string]interface{}, len(l.fields)+len(keysAndValues)/2+3)
	for k, v := range l.fields {
		entry[k] = v
	}
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			entry[fmt.Sprintf("%v", keysAndValues[i])] = keysAndValues[i+1]
		}
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = levelString(level)
	entry["msg"] = msg

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("LOG_ERROR: failed to marshal log entry: %v", err)
		return
	}

	jsonStr := string(jsonBytes)
	l.logger.Println(jsonStr)
	l.logToSyslog(level, jsonStr)
}

func levelString(level LogLevel) string {
	switch level {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(DebugLevel, msg, keysAndValues...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(InfoLevel, msg, keysAndValues...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(WarnLevel, msg, keysAndValues...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(ErrorLevel, msg, keysAndValues...)
}
