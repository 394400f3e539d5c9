package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNoCheckpoint is returned when a thread has no stored checkpoint, either
// because it never interrupted or because it already completed.
var ErrNoCheckpoint = errors.New("no checkpoint for thread")

// Checkpoint is the serialized position of an interrupted thread: the state
// entering the interrupted node and the node to re-execute on resume.
type Checkpoint struct {
	ThreadID string          `json:"thread_id"`
	Node     string          `json:"node"`
	State    json.RawMessage `json:"state"`
	SavedAt  time.Time       `json:"saved_at"`
}

// Checkpointer persists checkpoints per thread.
type Checkpointer interface {
	Put(threadID string, checkpoint *Checkpoint) error
	Get(threadID string) (*Checkpoint, error)
	Delete(threadID string) error
}

// MemorySaver keeps checkpoints in process memory. Suitable for a single
// interactive run where the interrupt is answered before exit.
type MemorySaver struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

func NewMemorySaver() *MemorySaver {
	return &MemorySaver{checkpoints: make(map[string]*Checkpoint)}
}

func (m *MemorySaver) Put(threadID string, checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[threadID] = checkpoint
	return nil
}

func (m *MemorySaver) Get(threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checkpoint, ok := m.checkpoints[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %q: %w", threadID, ErrNoCheckpoint)
	}
	return checkpoint, nil
}

func (m *MemorySaver) Delete(threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkpoints, threadID)
	return nil
}

// FileSaver persists one JSON checkpoint file per thread under a directory,
// allowing an interrupted run to be resumed by a later process.
type FileSaver struct {
	dir string
}

func NewFileSaver(dir string) (*FileSaver, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("checkpoint directory is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}

	return &FileSaver{dir: dir}, nil
}

func (f *FileSaver) Put(threadID string, checkpoint *Checkpoint) error {
	path, err := f.path(threadID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write-then-rename keeps a crashed write from corrupting the previous
	// checkpoint.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func (f *FileSaver) Get(threadID string) (*Checkpoint, error) {
	path, err := f.path(threadID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("thread %q: %w", threadID, ErrNoCheckpoint)
		}
		return nil, err
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("parse checkpoint %q: %w", path, err)
	}

	return &checkpoint, nil
}

func (f *FileSaver) Delete(threadID string) error {
	path, err := f.path(threadID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Threads lists thread ids with a stored checkpoint.
func (f *FileSaver) Threads() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	var threads []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		threads = append(threads, strings.TrimSuffix(name, ".json"))
	}

	return threads, nil
}

func (f *FileSaver) path(threadID string) (string, error) {
	if threadID == "" || strings.ContainsAny(threadID, `/\`) || strings.Contains(threadID, "..") {
		return "", fmt.Errorf("invalid thread id %q", threadID)
	}
	return filepath.Join(f.dir, threadID+".json"), nil
}
