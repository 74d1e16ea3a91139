// Package logger provides leveled logging for tigerfdw
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent disables all logging
	LevelSilent
)

var levelNames = map[Level]string{
	LevelDebug:  "DEBUG",
	LevelInfo:   "INFO",
	LevelWarn:   "WARN",
	LevelError:  "ERROR",
	LevelSilent: "SILENT",
}

// String returns the upper-case name of the level
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a string to a Level, falling back to INFO
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "silent":
		return LevelSilent
	default:
		return LevelInfo
	}
}

// Config represents logger configuration
type Config struct {
	Level Level
	// Output is "stdout", "stderr" or a file path
	Output string
	// Format is "text" or "json"
	Format          string
	EnableCaller    bool
	EnableTimestamp bool
	// rotation, file output only
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:           LevelInfo,
		Output:          "stdout",
		Format:          "text",
		EnableTimestamp: true,
		MaxSize:         100,
		MaxBackups:      3,
		MaxAge:          7,
		Compress:        true,
	}
}

// Logger writes leveled messages to a single output
type Logger struct {
	mu      sync.RWMutex
	level   Level
	output  io.Writer
	format  string
	caller  bool
	stamp   bool
	loggers map[Level]*log.Logger
}

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// Init installs the global logger. Calling it again replaces the previous one.
func Init(cfg *Config) error {
	l, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
	return nil
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		output = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
	}
	return NewWithWriter(output, cfg), nil
}

// NewWithWriter creates a logger that writes to w, ignoring cfg.Output
func NewWithWriter(w io.Writer, cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	flags := 0
	if cfg.EnableTimestamp {
		flags |= log.Ldate | log.Ltime | log.Lmicroseconds
	}
	if cfg.EnableCaller {
		flags |= log.Lshortfile
	}

	l := &Logger{
		level:   cfg.Level,
		output:  w,
		format:  cfg.Format,
		caller:  cfg.EnableCaller,
		stamp:   cfg.EnableTimestamp,
		loggers: make(map[Level]*log.Logger, 4),
	}
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		l.loggers[level] = log.New(w, "["+level.String()+"] ", flags)
	}
	return l
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level && level < LevelSilent
}

// Log writes a message at the given level
func (l *Logger) Log(level Level, format string, v ...interface{}) {
	l.emit(level, fmt.Sprintf(format, v...))
}

// emit must be called directly from the public logging method so that
// Lshortfile resolves to that method's caller
func (l *Logger) emit(level Level, msg string) {
	if !l.IsLevelEnabled(level) {
		return
	}
	if l.format == "json" {
		l.logJSON(level, msg)
		return
	}
	if l.caller {
		l.loggers[level].Output(3, msg)
		return
	}
	l.loggers[level].Print(msg)
}

func (l *Logger) logJSON(level Level, msg string) {
	entry := map[string]interface{}{
		"level":   level.String(),
		"message": msg,
	}
	if l.stamp {
		entry["timestamp"] = time.Now().Format("2006-01-02T15:04:05.000000Z07:00")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.output, "[%s] %s\n", level, msg)
		return
	}
	fmt.Fprintln(l.output, string(data))
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.emit(LevelDebug, fmt.Sprintf(format, v...))
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.emit(LevelInfo, fmt.Sprintf(format, v...))
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.emit(LevelWarn, fmt.Sprintf(format, v...))
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.emit(LevelError, fmt.Sprintf(format, v...))
}

// GetGlobalLogger returns the global logger, creating a default one on first use
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger, _ = NewLogger(DefaultConfig())
	}
	return globalLogger
}

// SetLevel changes the global logger level
func SetLevel(level Level) {
	GetGlobalLogger().SetLevel(level)
}

func Debug(format string, v ...interface{}) {
	GetGlobalLogger().emit(LevelDebug, fmt.Sprintf(format, v...))
}

func Info(format string, v ...interface{}) {
	GetGlobalLogger().emit(LevelInfo, fmt.Sprintf(format, v...))
}

func Warn(format string, v ...interface{}) {
	GetGlobalLogger().emit(LevelWarn, fmt.Sprintf(format, v...))
}

func Error(format string, v ...interface{}) {
	GetGlobalLogger().emit(LevelError, fmt.Sprintf(format, v...))
}

// IsDebugEnabled checks if debug logging is enabled
func IsDebugEnabled() bool {
	return GetGlobalLogger().IsLevelEnabled(LevelDebug)
}

// WithField returns a FieldLogger with a single field
func WithField(key string, value interface{}) *FieldLogger {
	return GetGlobalLogger().WithFields(map[string]interface{}{key: value})
}

// WithFields returns a FieldLogger with multiple fields
func WithFields(fields map[string]interface{}) *FieldLogger {
	return GetGlobalLogger().WithFields(fields)
}

// WithFields binds fields to this logger
func (l *Logger) WithFields(fields map[string]interface{}) *FieldLogger {
	return &FieldLogger{logger: l, fields: fields}
}

// FieldLogger appends key=value pairs, sorted by key, to every message
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) format(format string, v ...interface{}) string {
	msg := fmt.Sprintf(format, v...)
	if len(fl.fields) == 0 {
		return msg
	}
	keys := make([]string, 0, len(fl.fields))
	for k := range fl.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fl.fields[k])
	}
	return b.String()
}

func (fl *FieldLogger) Debug(format string, v ...interface{}) {
	fl.logger.emit(LevelDebug, fl.format(format, v...))
}

func (fl *FieldLogger) Info(format string, v ...interface{}) {
	fl.logger.emit(LevelInfo, fl.format(format, v...))
}

func (fl *FieldLogger) Warn(format string, v ...interface{}) {
	fl.logger.emit(LevelWarn, fl.format(format, v...))
}

func (fl *FieldLogger) Error(format string, v ...interface{}) {
	fl.logger.emit(LevelError, fl.format(format, v...))
}
