// Package transaction guards an install directory with a lock file and
// records the outcome of each install with an atomic write.
package transaction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RecordFileName is written inside the install directory.
const RecordFileName = ".conductor-install.json"

// State represents the current state of an install.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Record describes the most recent install into a directory.
type Record struct {
	Version    int       `json:"version"` // Schema version for future evolution
	ID         string    `json:"id"`      // UUID for unique identification
	Timestamp  time.Time `json:"timestamp"`
	State      State     `json:"state"`
	Release    string    `json:"release"`
	Platform   string    `json:"platform"`
	Asset      string    `json:"asset"`
	BinaryPath string    `json:"binary_path,omitempty"`
	Verified   string    `json:"verified,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// New creates an in-progress record for release on platform.
func New(release, platform, asset string) *Record {
	return &Record{
		Version:   1,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		State:     StateInProgress,
		Release:   release,
		Platform:  platform,
		Asset:     asset,
	}
}

// Complete marks the record completed.
func (r *Record) Complete(binaryPath, verified string) {
	r.State = StateCompleted
	r.BinaryPath = binaryPath
	r.Verified = verified
	r.LastError = ""
	r.Timestamp = time.Now().UTC()
}

// Fail marks the record failed with err.
func (r *Record) Fail(err error) {
	r.State = StateFailed
	if err != nil {
		r.LastError = err.Error()
	}
	r.Timestamp = time.Now().UTC()
}

// Save writes the record into dir atomically.
// Uses write-then-rename pattern for atomicity.
func (r *Record) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}

	finalPath := filepath.Join(dir, RecordFileName)
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temporary record file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename record file: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}

// Load reads the record stored in dir.
func Load(dir string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, RecordFileName))
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}

	return &r, nil
}
