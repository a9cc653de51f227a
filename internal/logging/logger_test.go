package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/backmassage/stitch/internal/config"
)

func TestNewLogger_NoFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	l, err := NewLogger(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	l.Info("test message")
}

func TestNewLogger_WithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(dir, "logs", "stitch.log")
	l, err := NewLogger(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	l.SetConsole(false)
	l.Info("to file")
	l.With("spec", "reel.txt").WithJob("1234", "intro.mp4").Debug("argv %v", []string{"-i", "a.mp4"})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d JSON lines, want 2: %s", len(lines), b)
	}

	var first map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if first["level"] != "INFO" || first["msg"] != "to file" {
		t.Errorf("line 1 = %v", first)
	}

	var second map[string]any
	if err := json.Unmarshal(lines[1], &second); err != nil {
		t.Fatalf("line 2 is not JSON: %v", err)
	}
	if second["level"] != "DEBUG" || second["target"] != "intro.mp4" || second["job_id"] != "1234" || second["spec"] != "reel.txt" {
		t.Errorf("debug record missing job context: %v", second)
	}
}

func TestSuccessLevelLabel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(t.TempDir(), "stitch.log")
	l, err := NewLogger(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	l.SetConsole(false)
	l.Success("done")
	l.Close()

	b, _ := os.ReadFile(cfg.LogFile)
	if !bytes.Contains(b, []byte(`"level":"SUCCESS"`)) {
		t.Errorf("log file content: %s", b)
	}
}

func TestConsolePrefix(t *testing.T) {
	var buf bytes.Buffer
	l := Nop()
	l.out.stdout = &buf
	l.out.console = true

	l.WithJob("1", "final.mkv").Warn("careful")
	if !bytes.Contains(buf.Bytes(), []byte("[WARN] [final.mkv] careful")) {
		t.Errorf("console line = %q", buf.String())
	}

	buf.Reset()
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug should be hidden without verbose, got %q", buf.String())
	}
}
