package reactor

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	require.Equal(t, "DEBUG", LevelDebug.String())
	require.Equal(t, "INFO", LevelInfo.String())
	require.Equal(t, "WARN", LevelWarn.String())
	require.Equal(t, "ERROR", LevelError.String())
	require.Contains(t, LogLevel(99).String(), "UNKNOWN")
}

func TestNoOpLogger_DiscardsEverything(t *testing.T) {
	var l NoOpLogger
	require.False(t, l.IsEnabled(LevelError))
	l.Log(LogEntry{Level: LevelError, Message: "should be invisible"})
}

func TestWriterLogger_RespectsLevelFloor(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelWarn, &buf)

	require.False(t, l.IsEnabled(LevelDebug))
	l.Log(LogEntry{Level: LevelDebug, Category: "loop", Message: "too quiet to log"})
	require.Empty(t, buf.String())

	l.Log(LogEntry{Level: LevelWarn, Category: "loop", Message: "audible"})
	require.Contains(t, buf.String(), "audible")
	require.Contains(t, buf.String(), "WARN")
	require.Contains(t, buf.String(), "loop")
}

func TestWriterLogger_SetLevelChangesFloorLive(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelError, &buf)
	require.False(t, l.IsEnabled(LevelWarn))

	l.SetLevel(LevelWarn)
	require.True(t, l.IsEnabled(LevelWarn))
}

func TestWriterLogger_IncludesHandleMechanismAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelDebug, &buf)

	l.Log(LogEntry{
		Level:     LevelError,
		Category:  "backend",
		Message:   "wait failed",
		Handle:    7,
		Mechanism: Epoll,
		Err:       errors.New("boom"),
		Context:   map[string]interface{}{"n": 3},
	})

	out := buf.String()
	require.Contains(t, out, "handle=7")
	require.Contains(t, out, "mechanism=EPOLL")
	require.Contains(t, out, "err=boom")
	require.Contains(t, out, "n=3")
}

func TestGlobalLogger_DefaultsToNoOp(t *testing.T) {
	SetStructuredLogger(nil)
	_, ok := getGlobalLogger().(NoOpLogger)
	require.True(t, ok)
}

func TestGlobalLogger_SetStructuredLoggerIsObservedGlobally(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelDebug, &buf)
	SetStructuredLogger(l)
	defer SetStructuredLogger(nil)

	require.Same(t, Logger(l), getGlobalLogger())
}

func TestLogHelpers_RespectEnabledChecks(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelError, &buf)

	logDebug(l, "registry", "noisy", nil)
	logWarn(l, "registry", "also noisy", nil)
	require.Empty(t, buf.String())

	logError(l, "registry", "loud", errors.New("x"), nil)
	require.Contains(t, buf.String(), "loud")
}

func TestLogSlowCallback_IncludesElapsedAndMax(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelDebug, &buf)

	logSlowCallback(l, Handle(3), 600, 500)
	out := buf.String()
	require.Contains(t, out, "exceeded max blocking duration")
	require.Contains(t, out, "handle=3")
}

func TestLogPermissionDenied_IncludesBacktrace(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelDebug, &buf)

	logPermissionDenied(l, "goroutine 1 [running]:\nmain.main()")
	require.Contains(t, buf.String(), "without owning thread")
}

func TestLogMechanismSwitch_NamesBothMechanisms(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelDebug, &buf)

	logMechanismSwitch(l, Poll, Epoll)
	out := buf.String()
	require.Contains(t, out, "POLL")
	require.Contains(t, out, "EPOLL")
}

func TestLogSignalLatched_NamesSignalNumber(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelDebug, &buf)

	logSignalLatched(l, 15)
	require.Contains(t, buf.String(), "signal latched")
}

func TestLogBackendError_EscalatesLevelWhenCritical(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelError, &buf)

	logBackendError(l, Select, errors.New("eagain"), false)
	require.Empty(t, buf.String(), "non-critical backend errors log at WARN, below the ERROR floor")

	logBackendError(l, Select, errors.New("fatal"), true)
	require.Contains(t, buf.String(), "fatal")
}

func TestIsTerminal_FalseForNonFileWriter(t *testing.T) {
	require.False(t, isTerminal(&bytes.Buffer{}))
}

func TestEscapeJSON_HandlesBackslashesAndLowControlBytes(t *testing.T) {
	require.Equal(t, "a\\\\b", escapeJSON(`a\b`))
	require.True(t, strings.HasPrefix(escapeJSON("\x01x"), "\\u00"))
}
