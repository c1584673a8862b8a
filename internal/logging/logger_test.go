package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grimoire/internal/logging"
	"grimoire/internal/testsupport"
)

func TestNewWritesConsoleLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("job started",
		logging.String(logging.FieldComponent, "pipeline"),
		logging.String(logging.FieldJobID, "job-1"),
		logging.Error(errors.New("boom message")),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO pipeline: job started") {
		t.Fatalf("component prefix missing: %q", line)
	}
	if !strings.Contains(line, "job_id=job-1") {
		t.Fatalf("attrs missing: %q", line)
	}
	if !strings.Contains(line, `error="boom message"`) {
		t.Fatalf("error attr must be quoted: %q", line)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "suppressed") {
		t.Fatalf("info line must be filtered at warn level: %q", data)
	}
	if !strings.Contains(string(data), "kept") {
		t.Fatalf("warn line missing: %q", data)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("hello from config")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "grimoire.log"))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(data), "hello from config") {
		t.Fatalf("log line missing: %q", data)
	}
}
