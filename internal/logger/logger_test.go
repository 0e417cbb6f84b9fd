package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestWriters_WithDirOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := CaptureConfig{Dir: dir}
	outW, errW, err := cfg.Writers("vigil-agent")
	if err != nil {
		t.Fatalf("Writers error: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers non-nil when Dir is set")
	}
	_, _ = outW.Write([]byte("hello-out\n"))
	_, _ = errW.Write([]byte("hello-err\n"))
	closeIf(outW)
	closeIf(errW)
	outPath := filepath.Join(dir, "vigil-agent.stdout.log")
	errPath := filepath.Join(dir, "vigil-agent.stderr.log")
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("stdout log not created at %s: %v", outPath, err)
	}
	if _, err := os.Stat(errPath); err != nil {
		t.Fatalf("stderr log not created at %s: %v", errPath, err)
	}
}

func TestWriters_WithExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	sp := filepath.Join(dir, "a.out.log")
	ep := filepath.Join(dir, "a.err.log")
	cfg := CaptureConfig{StdoutPath: sp, StderrPath: ep}
	outW, errW, err := cfg.Writers("ignored-name")
	if err != nil {
		t.Fatalf("Writers error: %v", err)
	}
	_, _ = outW.Write([]byte("x"))
	_, _ = errW.Write([]byte("y"))
	closeIf(outW)
	closeIf(errW)
	if _, err := os.Stat(sp); err != nil {
		t.Fatalf("stdout log not created: %v", err)
	}
	if _, err := os.Stat(ep); err != nil {
		t.Fatalf("stderr log not created: %v", err)
	}
}

func TestWriters_NoneConfigured(t *testing.T) {
	outW, errW, err := CaptureConfig{}.Writers("x")
	if err != nil {
		t.Fatalf("Writers error: %v", err)
	}
	if outW != nil || errW != nil {
		t.Fatalf("expected nil writers when nothing configured")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, "warn")
	lg.Info("hidden")
	lg.Warn("visible")
	out := buf.String()
	if bytes.Contains([]byte(out), []byte("hidden")) {
		t.Fatalf("info line should be filtered at warn level: %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("visible")) {
		t.Fatalf("warn line missing: %q", out)
	}
}
