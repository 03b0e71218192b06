package transaction

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

func TestRecordLifecycle(t *testing.T) {
	dir := t.TempDir()

	rec := New("1.2.3", "darwin/arm64", "conductor-kit_1.2.3_darwin_arm64.tar.gz")
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", rec.ID, err)
	}
	if rec.State != StateInProgress {
		t.Errorf("State = %q, want in_progress", rec.State)
	}

	if err := rec.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec.Complete("/x/native/conductor", "None")
	if err := rec.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(rec, loaded, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(dir, RecordFileName+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary record file left behind")
	}
}

func TestRecordFail(t *testing.T) {
	rec := New("1.0.0", "linux/amd64", "a.tar.gz")
	rec.Fail(errors.New("HTTP 404: https://example.com"))

	if rec.State != StateFailed {
		t.Errorf("State = %q, want failed", rec.State)
	}
	if rec.LastError != "HTTP 404: https://example.com" {
		t.Errorf("LastError = %q", rec.LastError)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(dir); err == nil {
		t.Error("expected error for missing record")
	}

	if err := os.WriteFile(filepath.Join(dir, RecordFileName), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error for corrupt record")
	}
}
