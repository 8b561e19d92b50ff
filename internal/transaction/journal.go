// Package transaction serializes package installs across processes and
// records each install run in a journal, so an interrupted run can be
// detected and recovered on the next start.
package transaction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// State is the state of an install run.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Record is the journal entry of the most recent install run for one
// package identity.
type Record struct {
	Version   int       `json:"version"` // schema version
	RunID     string    `json:"run_id"`
	Identity  string    `json:"identity"`
	Dir       string    `json:"dir"`
	State     State     `json:"state"`
	Outcome   string    `json:"outcome,omitempty"`
	Installed string    `json:"installed_version,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// NewRecord starts a record for a run that installs into dir.
func NewRecord(id, dir string, now time.Time) *Record {
	return &Record{
		Version:  1,
		RunID:    uuid.New().String(),
		Identity: id,
		Dir:      dir,
		State:    StateInProgress,
		Started:  now.UTC(),
	}
}

// Finish marks the run as done. A nil err completes the run.
func (r *Record) Finish(outcome, installed string, err error, now time.Time) {
	r.Outcome = outcome
	r.Installed = installed
	r.Finished = now.UTC()
	if err != nil {
		r.State = StateFailed
		r.LastError = err.Error()
		return
	}
	r.State = StateCompleted
	r.LastError = ""
}

// Interrupted reports whether the run never finished.
func (r *Record) Interrupted() bool {
	return r.State == StateInProgress
}

// JournalPath returns the journal file used for id inside dir.
func JournalPath(dir, id string) string {
	return filepath.Join(dir, "install-"+id+".json")
}

// Save writes the record to disk atomically.
// Uses write-then-rename pattern for atomicity.
func (r *Record) Save(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	finalPath := JournalPath(dir, r.Identity)
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temporary journal file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename journal file: %w", err)
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

// Load reads the record for id. It returns (nil, nil) when no run was ever
// journaled.
func Load(dir, id string) (*Record, error) {
	data, err := os.ReadFile(JournalPath(dir, id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal file: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal journal: %w", err)
	}
	return &r, nil
}
