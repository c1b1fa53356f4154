package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("server started", "port", 8080)

	out := buf.String()
	if !strings.Contains(out, "[INFO] server started") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "port=8080") {
		t.Errorf("missing attribute in output: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)

	Debug("hidden")
	Info("also hidden")
	Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("filtered levels leaked: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Error("storage failure", "table", "data")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "storage failure" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["table"] != "data" {
		t.Errorf("table = %v", record["table"])
	}
}

func TestInvalidLevelIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	SetLevel("NOPE") // must not change anything
	Info("still logged")

	if !strings.Contains(buf.String(), "still logged") {
		t.Errorf("info record missing after invalid SetLevel: %q", buf.String())
	}
}

func TestWithPreBindsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	l := With("component", "probe")
	l.Info("tick")

	if !strings.Contains(buf.String(), "component=probe") {
		t.Errorf("pre-bound field missing: %q", buf.String())
	}
}
