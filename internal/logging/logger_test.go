package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFormatsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("extractor", &buf)

	l.Info("batch complete", "ads", 12, "failed", 2, "dangling")

	out := buf.String()
	if !strings.Contains(out, "[extractor] ") {
		t.Errorf("missing prefix in %q", out)
	}
	if !strings.Contains(out, "[INFO] batch complete ads=12 failed=2") {
		t.Errorf("unexpected line %q", out)
	}
	if strings.Contains(out, "dangling") {
		t.Errorf("odd trailing key should be dropped: %q", out)
	}
}

func TestDebugRespectsLogLevel(t *testing.T) {
	var buf bytes.Buffer

	t.Setenv("LOG_LEVEL", "info")
	NewLoggerWithWriter("x", &buf).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}

	t.Setenv("LOG_LEVEL", "DEBUG")
	NewLoggerWithWriter("x", &buf).Debug("shown")
	if !strings.Contains(buf.String(), "[DEBUG] shown") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}

func TestNamedExtendsPrefix(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter("worker", &buf).Named("ocr").Warn("low confidence")

	if !strings.Contains(buf.String(), "[worker.ocr] ") {
		t.Fatalf("child prefix missing: %q", buf.String())
	}
}
