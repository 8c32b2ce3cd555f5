package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_WritesJSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力がJSONではない: %v\n出力: %s", err, buf.String())
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

func TestSetup_DefaultLevelSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Debug("should be suppressed")

	if buf.Len() != 0 {
		t.Errorf("LOG_LEVEL未設定時にDEBUGログが出力された: %s", buf.String())
	}
}

func TestSetup_LevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Debug("debug enabled")

	if buf.Len() == 0 {
		t.Error("LOG_LEVEL=debug なのにDEBUGログが出力されていない")
	}
}

func TestSetup_UnknownLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("不明なLOG_LEVELではinfoにフォールバックするべき")
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Info("global log")

	if buf.Len() == 0 {
		t.Error("グローバルロガー経由のログが出力されていない")
	}
}
