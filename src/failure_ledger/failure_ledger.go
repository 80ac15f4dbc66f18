// Package failure_ledger keeps the connectivity failure counter that survives
// process restarts. An external watchdog reads the same file to decide when to
// intervene.
package failure_ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeLayout is the connfail_time format.
const TimeLayout = "2006-01-02 15:04:05"

var logger = logrus.WithField("module", "failure_ledger")

// Record is one terminal connection failure.
type Record struct {
	Time  string `json:"connfail_time"`
	Code  int    `json:"connfail_code"`
	Info  string `json:"connfail_info"`
	Order int    `json:"connfail_order"`
}

// State is the on-disk ledger. Count always equals len(Records).
type State struct {
	Count   int      `json:"connectivity_failures"`
	Records []Record `json:"connectivity_failures_list"`
}

// History archives records beyond the lifetime of the ledger file.
type History interface {
	Append(ctx context.Context, rec Record) error
}

// Ledger reads and writes the failure file.
type Ledger struct {
	path    string
	history History
	now     func() time.Time
}

// NewLedger creates a Ledger backed by path. history may be nil.
func NewLedger(path string, history History) *Ledger {
	return &Ledger{path: path, history: history, now: time.Now}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Load returns the persisted ledger. A missing file is an empty ledger.
func (l *Ledger) Load() (*State, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptyState(), nil
		}
		return nil, fmt.Errorf("error reading failure ledger: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("malformed failure ledger %s: %w", l.path, err)
	}
	if state.Records == nil {
		state.Records = []Record{}
	}
	if state.Count != len(state.Records) {
		return nil, fmt.Errorf("failure ledger %s is inconsistent: count %d, %d records", l.path, state.Count, len(state.Records))
	}
	return &state, nil
}

// Record appends a failure with the next sequence number and persists it.
func (l *Ledger) Record(ctx context.Context, code int, message string) (*State, error) {
	state, err := l.Load()
	if err != nil {
		return nil, err
	}
	rec := Record{
		Time:  l.now().Format(TimeLayout),
		Code:  code,
		Info:  message,
		Order: len(state.Records) + 1,
	}
	state.Records = append(state.Records, rec)
	state.Count = len(state.Records)
	if err := l.write(state); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"code":  code,
		"info":  message,
		"count": state.Count,
	}).Warn("Recorded connectivity failure")

	if l.history != nil {
		if err := l.history.Append(ctx, rec); err != nil {
			logger.WithError(err).Warn("Failed to archive connectivity failure")
		}
	}
	return state, nil
}

// Reset clears the ledger after a successful connect.
func (l *Ledger) Reset() error {
	if err := l.write(emptyState()); err != nil {
		return err
	}
	logger.Debug("Failure ledger reset")
	return nil
}

// write replaces the ledger file through a rename so readers never see a
// partially written file.
func (l *Ledger) write(state *State) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error replacing failure ledger: %w", err)
	}
	return nil
}

func emptyState() *State {
	return &State{Count: 0, Records: []Record{}}
}
