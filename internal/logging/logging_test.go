package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("segment")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("uploaded", "key", "user/video/audio/a_000.aac")

	out := buf.String()
	if !strings.Contains(out, "msg=uploaded") {
		t.Fatalf("expected plain uploaded message, got: %s", out)
	}
	if !strings.Contains(out, "component=segment") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "key=user/video/audio/a_000.aac") {
		t.Fatalf("expected key field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("segment")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestWithStreamAttachesCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger := WithStream(L("pipeline"), "sess-1", "video")
	logger.Info("pump started")

	out := buf.String()
	if !strings.Contains(out, "sessionId=sess-1") {
		t.Fatalf("expected session field, got: %s", out)
	}
	if !strings.Contains(out, "stream=video") {
		t.Fatalf("expected stream field, got: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)

	L("encoder").Info("started")

	out := buf.String()
	if !strings.Contains(out, `"component":"encoder"`) {
		t.Fatalf("expected json component field, got: %s", out)
	}
}
