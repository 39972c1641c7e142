package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a flag value to a level, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "critical":
		return CRITICAL
	default:
		return INFO
	}
}

// sink is shared by a logger and every child created with With.
type sink struct {
	mu       sync.Mutex
	minLevel LogLevel
	file     *os.File
	out      io.Writer // optional second destination (stdout)
	lastSeen map[string]time.Time
	now      func() time.Time
}

type Logger struct {
	sink   *sink
	prefix string
}

func NewFileLogger(filePath string, minLevel LogLevel, alsoStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	var out io.Writer
	if alsoStdout {
		out = os.Stdout
	}
	return &Logger{sink: &sink{
		minLevel: minLevel,
		file:     f,
		out:      out,
		lastSeen: map[string]time.Time{},
		now:      time.Now,
	}}, nil
}

// NewWriterLogger logs to w only. Used by tests and tools without a log file.
func NewWriterLogger(w io.Writer, minLevel LogLevel) *Logger {
	return &Logger{sink: &sink{
		minLevel: minLevel,
		out:      w,
		lastSeen: map[string]time.Time{},
		now:      time.Now,
	}}
}

func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		return err
	}
	return nil
}

func (l *Logger) SetMinLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.minLevel = level
}

// With returns a logger writing to the same destinations with every message
// prefixed by component.
func (l *Logger) With(component string) *Logger {
	prefix := component
	if l.prefix != "" {
		prefix = l.prefix + "." + component
	}
	return &Logger{sink: l.sink, prefix: prefix}
}

// Every reports whether a message keyed by key may be logged now, at most
// once per interval. Use it to keep per-tick messages readable:
//
//	if log.Every("searching", time.Second) { log.Info("searching") }
func (l *Logger) Every(key string, interval time.Duration) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	key = l.prefix + "/" + key
	now := l.sink.now()
	if last, ok := l.sink.lastSeen[key]; ok && now.Sub(last) < interval {
		return false
	}
	l.sink.lastSeen[key] = now
	return true
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.minLevel {
		return
	}

	body := fmt.Sprintf(msg, args...)
	if l.prefix != "" {
		body = "[" + l.prefix + "] " + body
	}
	line := fmt.Sprintf("%s [%s] %s\n", s.now().Format(time.RFC3339Nano), level.String(), body)

	if s.file != nil {
		_, _ = s.file.WriteString(line)
	}
	if s.out != nil {
		_, _ = io.WriteString(s.out, line)
	}
}

func (l *Logger) Trace(msg string, args ...any)    { l.log(TRACE, msg, args...) }
func (l *Logger) Debug(msg string, args ...any)    { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)     { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)     { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any)    { l.log(ERROR, msg, args...) }
func (l *Logger) Critical(msg string, args ...any) { l.log(CRITICAL, msg, args...) }
