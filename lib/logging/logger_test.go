package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

// capture redirects a logger's output to a buffer for the duration of a test.
func capture(t *testing.T, name string) (*lmdictLogger, *bytes.Buffer) {
	t.Helper()
	l := GetLogger(name).(*lmdictLogger)
	var buf bytes.Buffer
	prev := l.logger
	l.logger = log.New(&buf, "", 0)
	t.Cleanup(func() { l.logger = prev })
	return l, &buf
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warn", WARNING},
		{"Warning", WARNING},
		{"error", ERROR},
	}
	for _, tc := range tests {
		if got := ParseLogLevel(tc.in); got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseLogLevelInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected an invalid level to panic")
		}
	}()
	ParseLogLevel("verbose")
}

func TestLevelFiltering(t *testing.T) {
	l, buf := capture(t, "test/filtering")
	l.SetLevel(WARNING)

	l.Debugf("debug message")
	l.Infof("info message")
	if buf.Len() != 0 {
		t.Errorf("messages below the level were written: %q", buf.String())
	}

	l.Warningf("warning message")
	l.Errorf("error message")
	out := buf.String()
	if !strings.Contains(out, "warning message") || !strings.Contains(out, "error message") {
		t.Errorf("messages at or above the level missing: %q", out)
	}
}

func TestMessageFormat(t *testing.T) {
	l, buf := capture(t, "test/format")
	l.SetLevel(INFO)

	l.Infof("count=%d", 42)
	out := buf.String()
	if !strings.Contains(out, "INFO ") {
		t.Errorf("output %q missing padded level tag", out)
	}
	if !strings.Contains(out, "test/format") {
		t.Errorf("output %q missing logger name", out)
	}
	if !strings.Contains(out, "count=42") {
		t.Errorf("output %q missing formatted message", out)
	}
}

func TestGetLoggerShared(t *testing.T) {
	a := GetLogger("test/shared")
	b := GetLogger("test/shared")
	if a != b {
		t.Errorf("expected GetLogger to return the same instance for one name")
	}
}

func TestSetGlobalLevel(t *testing.T) {
	defer SetGlobalLevel(INFO)

	existing := GetLogger("test/global-existing").(*lmdictLogger)
	SetGlobalLevel(DEBUG)

	if existing.level != DEBUG {
		t.Errorf("existing logger level = %v, want DEBUG", existing.level)
	}
	if fresh := GetLogger("test/global-fresh").(*lmdictLogger); fresh.level != DEBUG {
		t.Errorf("new logger level = %v, want DEBUG", fresh.level)
	}
}

func TestPanicfHook(t *testing.T) {
	l := GetLogger("test/panic")
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected Panicf to panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "bad argument 7") {
			t.Errorf("panic value %v missing the formatted message", r)
		}
	}()
	l.Panicf("bad argument %d", 7)
}
