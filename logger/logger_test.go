package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level, format string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewWithWriter(buf, &Config{Level: level, Format: format}), buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelSilent, ParseLevel("silent"))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LevelWarn, "text")
	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	l.Warn("shown %d", 3)
	l.Error("shown %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 3")
	assert.Contains(t, out, "[ERROR] shown 4")

	l.SetLevel(LevelSilent)
	buf.Reset()
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestJSONFormat(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo, "json")
	l.Info("hello %s", "world")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hello world", entry["message"])
}

func TestFieldLoggerSortsFields(t *testing.T) {
	l, buf := newBufferLogger(LevelDebug, "text")
	l.WithFields(map[string]interface{}{"table": "logs", "rows": 3}).Info("scan %s", "done")
	assert.Contains(t, buf.String(), "scan done rows=3 table=logs")
}

func TestFieldLoggerKeepsPercentSigns(t *testing.T) {
	l, buf := newBufferLogger(LevelDebug, "text")
	l.WithFields(map[string]interface{}{"pattern": "a%b"}).Info("like")
	assert.Contains(t, buf.String(), "like pattern=a%b")
	assert.NotContains(t, buf.String(), "%!")
}

func TestTraceFlush(t *testing.T) {
	l, buf := newBufferLogger(LevelDebug, "text")
	tr := NewTrace(l, LevelWarn)
	require.NotEmpty(t, tr.ID())

	tr.Logf("skip %s", "a @@ b")
	tr.Logf("query: %d clauses", 2)
	assert.Equal(t, []string{"skip a @@ b", "query: 2 clauses"}, tr.Lines())

	tr.Flush()
	out := buf.String()
	assert.Contains(t, out, "[WARN] query "+tr.ID())
	assert.Contains(t, out, ">>> skip a @@ b")
	assert.Contains(t, out, ">>> query: 2 clauses")
	assert.Empty(t, tr.Lines())

	buf.Reset()
	tr.Flush()
	assert.Empty(t, buf.String())
}

func TestTraceBelowLoggerLevelIsDropped(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo, "text")
	tr := NewTrace(l, LevelDebug)
	tr.Logf("noise")
	tr.Flush()
	assert.Empty(t, strings.TrimSpace(buf.String()))
}

func TestTraceConcurrentLogf(t *testing.T) {
	tr := NewTrace(nil, LevelDebug)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tr.Logf("line %d", n)
		}(i)
	}
	wg.Wait()
	assert.Len(t, tr.Lines(), 8)
}

func TestTraceIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewTrace(nil, LevelInfo).ID(), NewTrace(nil, LevelInfo).ID())
}
