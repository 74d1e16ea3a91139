package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Trace collects the diagnostic lines of one query and writes them as a
// single entry on Flush. Safe for concurrent use.
type Trace struct {
	mu     sync.Mutex
	id     string
	level  Level
	lines  []string
	logger *Logger
}

// NewTrace creates a trace with a fresh query id. A nil logger means the global one.
func NewTrace(l *Logger, level Level) *Trace {
	if l == nil {
		l = GetGlobalLogger()
	}
	return &Trace{
		id:     uuid.NewString(),
		level:  level,
		logger: l,
	}
}

// ID returns the query id
func (t *Trace) ID() string {
	return t.id
}

// Logf appends a line
func (t *Trace) Logf(format string, args ...interface{}) {
	t.mu.Lock()
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}

// Lines returns a copy of the buffered lines
func (t *Trace) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// Flush writes the buffered lines at the trace level and clears the buffer
func (t *Trace) Flush() {
	t.mu.Lock()
	lines := t.lines
	t.lines = nil
	t.mu.Unlock()

	if len(lines) == 0 {
		return
	}
	t.logger.emit(t.level, fmt.Sprintf("query %s\n    >>> %s", t.id, strings.Join(lines, "\n    >>> ")))
}
