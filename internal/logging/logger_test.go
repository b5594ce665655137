package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerWritesConsoleLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Infof("uploading %d files", 3)

	out := buf.String()
	if !strings.Contains(out, "uploading 3 files") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "INF") {
		t.Errorf("expected level marker in output, got %q", out)
	}
}

func TestWithStrAddsField(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, true).WithStr("session", "abc123")

	l.Info().Msg("login ok")

	if !strings.Contains(buf.String(), "session=abc123") {
		t.Errorf("expected session field, got %q", buf.String())
	}
}

func TestDebugHiddenAtInfoLevel(t *testing.T) {
	SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() { SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Debugf("token=%s", "secret")

	if buf.Len() != 0 {
		t.Errorf("debug line should be suppressed at info level, got %q", buf.String())
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Errorf("nothing %s", "here")
}

func TestTeeLoggerWritesJSONToFile(t *testing.T) {
	var console, file bytes.Buffer
	l := NewTeeLogger(&console, &file)

	l.Info().Str("target", "Scan.png").Msg("uploaded")

	if !strings.Contains(console.String(), "uploaded") {
		t.Errorf("expected console line, got %q", console.String())
	}
	if !strings.Contains(file.String(), `"target":"Scan.png"`) {
		t.Errorf("expected JSON field in file output, got %q", file.String())
	}
}

func TestRotatingFileCreatesLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikiup.log")
	f := NewRotatingFile(path)

	l := NewTeeLogger(&bytes.Buffer{}, f)
	l.Info().Msg("session started")
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "session started") {
		t.Errorf("expected message in log file, got %q", data)
	}
}

func TestNewLoggerColorsFields(t *testing.T) {
	var plain, colored bytes.Buffer
	newLogger(&plain, true).WithStr("session", "abc123").Info().Msg("login ok")
	NewLogger(&colored).WithStr("session", "abc123").Info().Msg("login ok")

	if strings.Contains(plain.String(), "\x1b[") {
		t.Errorf("expected no color codes, got %q", plain.String())
	}
	if !strings.Contains(colored.String(), "\x1b[") {
		t.Errorf("expected color codes from NewLogger, got %q", colored.String())
	}
	if !strings.Contains(colored.String(), "abc123") {
		t.Errorf("expected field value in colored output, got %q", colored.String())
	}
}
