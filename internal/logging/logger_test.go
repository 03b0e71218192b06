package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.Debug("resolving", "repo", "conductor-kit")
	log.Info("downloaded", "bytes", 42)
	log.Warn("non-semver tag", "tag", "nightly")
	log.Error("extract failed", "archive", "x.tar.gz")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, wantLevels[i])
		}
	}

	if got := entries[1].ContextMap()["bytes"]; got != int64(42) {
		t.Errorf("bytes field = %v (%T), want 42", got, got)
	}
	if got := entries[2].ContextMap()["tag"]; got != "nightly" {
		t.Errorf("tag field = %v, want nightly", got)
	}
}

func TestNop(t *testing.T) {
	// Must not panic.
	l := Nop()
	l.Debug("x")
	l.Info("x", "k", "v")
	l.Warn("x")
	l.Error("x", "odd")
}

func TestNew(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		l, sync, err := New(verbose)
		if err != nil {
			t.Fatalf("New(%v) error = %v", verbose, err)
		}
		l.Debug("hello")
		sync()
	}
}
