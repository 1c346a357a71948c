package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/lucasfepe/5G-PollutionMap/internal/config"
)

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}, "1.2.3", "pollutionmap", &buf)

	logger.Info("fetched", "locations", 3)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if got["msg"] != "fetched" {
		t.Errorf("msg = %v, want fetched", got["msg"])
	}
	if got["app"] != "pollutionmap" || got["version"] != "1.2.3" || got["env"] != "prod" {
		t.Errorf("missing static attrs: %v", got)
	}
	if got["locations"] != float64(3) {
		t.Errorf("locations = %v, want 3", got["locations"])
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn}, "1.2.3", "pollutionmap", &buf)

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn not logged: %q", buf.String())
	}
}

func TestNew_DevUsesTint(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}, "dev", "pollutionmap", &buf)

	logger.Debug("hello", "k", "v")

	out := buf.String()
	if !strings.Contains(out, "hello") {
		t.Fatalf("output %q does not contain message", out)
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("dev output should be text, got JSON: %q", out)
	}
}
