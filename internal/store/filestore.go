package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"coo-agent/internal/core"
)

// File names mirror the original deployment's data directory, so an existing
// data dir carries over unchanged.
const (
	approvedTasksFile    = "approved_tasks.json"
	outcomeTrackingFile  = "outcome_tracking.json"
	enhancedRewardsFile  = "enhanced_rewards.json"
	feedbackRequestsFile = "feedback_requests.json"
	trainingRunsFile     = "training_runs.json"
)

// FileStore persists tracking state as JSON files in one directory. Safe for
// concurrent use within a single process; files are rewritten whole on every
// save, which is fine at the record volumes a single business produces.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore opens (creating if needed) a data directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func readFile[T any](fs *FileStore, name string) ([]T, error) {
	data, err := os.ReadFile(filepath.Join(fs.dir, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return items, nil
}

func writeFile[T any](fs *FileStore, name string, items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp := filepath.Join(fs.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(fs.dir, name)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (fs *FileStore) ListOutcomes(_ context.Context) ([]core.OutcomeRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return readFile[core.OutcomeRecord](fs, outcomeTrackingFile)
}

// SaveOutcome inserts or replaces the record with the same task id.
func (fs *FileStore) SaveOutcome(_ context.Context, rec core.OutcomeRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	records, err := readFile[core.OutcomeRecord](fs, outcomeTrackingFile)
	if err != nil {
		return err
	}
	replaced := false
	for i := range records {
		if records[i].TaskID == rec.TaskID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return writeFile(fs, outcomeTrackingFile, records)
}

func (fs *FileStore) DeleteOutcomesBefore(_ context.Context, cutoff time.Time) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	records, err := readFile[core.OutcomeRecord](fs, outcomeTrackingFile)
	if err != nil {
		return 0, err
	}
	kept := records[:0]
	for _, rec := range records {
		if rec.Status == core.StatusCompleted && rec.TrackingEnd.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	deleted := len(records) - len(kept)
	if deleted == 0 {
		return 0, nil
	}
	return deleted, writeFile(fs, outcomeTrackingFile, kept)
}

func (fs *FileStore) ListRewards(_ context.Context) ([]core.EnhancedReward, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return readFile[core.EnhancedReward](fs, enhancedRewardsFile)
}

func (fs *FileStore) AppendReward(_ context.Context, r core.EnhancedReward) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rewards, err := readFile[core.EnhancedReward](fs, enhancedRewardsFile)
	if err != nil {
		return err
	}
	return writeFile(fs, enhancedRewardsFile, append(rewards, r))
}

func (fs *FileStore) ListApprovedTasks(_ context.Context) ([]core.ApprovedTask, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return readFile[core.ApprovedTask](fs, approvedTasksFile)
}

// AddApprovedTask appends an approval for the tracker to pick up. Exposed
// beyond core.Store for the CLI's track command.
func (fs *FileStore) AddApprovedTask(_ context.Context, task core.ApprovedTask) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	tasks, err := readFile[core.ApprovedTask](fs, approvedTasksFile)
	if err != nil {
		return err
	}
	return writeFile(fs, approvedTasksFile, append(tasks, task))
}

func (fs *FileStore) ListFeedbackRequests(_ context.Context) ([]core.FeedbackRequest, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return readFile[core.FeedbackRequest](fs, feedbackRequestsFile)
}

func (fs *FileStore) SaveFeedbackRequest(_ context.Context, fr core.FeedbackRequest) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	requests, err := readFile[core.FeedbackRequest](fs, feedbackRequestsFile)
	if err != nil {
		return err
	}
	replaced := false
	for i := range requests {
		if requests[i].TaskID == fr.TaskID {
			requests[i] = fr
			replaced = true
			break
		}
	}
	if !replaced {
		requests = append(requests, fr)
	}
	return writeFile(fs, feedbackRequestsFile, requests)
}

func (fs *FileStore) ListTrainingRuns(_ context.Context) ([]core.TrainingRun, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return readFile[core.TrainingRun](fs, trainingRunsFile)
}

func (fs *FileStore) AppendTrainingRun(_ context.Context, tr core.TrainingRun) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	runs, err := readFile[core.TrainingRun](fs, trainingRunsFile)
	if err != nil {
		return err
	}
	return writeFile(fs, trainingRunsFile, append(runs, tr))
}
