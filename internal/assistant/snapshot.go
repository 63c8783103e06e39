package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// ErrNoSnapshot indicates no snapshot is stored under the key.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Storage is the capability the snapshot store persists through. Implemented
// by FileStorage in production and by in-memory fakes in tests.
type Storage interface {
	Get() ([]byte, error)
	Set(data []byte) error
	Clear() error
}

// snapshot is the persisted wire format: write instant in epoch milliseconds
// plus the full message log.
type snapshot struct {
	Timestamp int64     `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

// SnapshotStore persists the conversation log with a time-to-live.
//
// Persistence is best-effort by design: Save and Clear never return errors
// to the caller, and Load falls back to a fresh welcome log whenever the
// stored snapshot is absent, unreadable or expired. A broken storage layer
// degrades the assistant to in-memory history, never to a failed turn.
type SnapshotStore struct {
	storage Storage
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewSnapshotStore creates a snapshot store over the given storage.
// A non-positive ttl falls back to 24 hours.
func NewSnapshotStore(storage Storage, ttl time.Duration, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SnapshotStore{
		storage: storage,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Load returns the persisted message log, or a single welcome message when
// nothing usable is stored. An expired snapshot is cleared so later loads
// don't re-parse it.
func (s *SnapshotStore) Load() []Message {
	fresh := []Message{WelcomeMessage(s.now())}

	data, err := s.storage.Get()
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			s.logger.Warn("failed to read conversation snapshot", "error", err)
		}
		return fresh
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("malformed conversation snapshot, starting fresh", "error", err)
		return fresh
	}

	writtenAt := time.UnixMilli(snap.Timestamp)
	if age := s.now().Sub(writtenAt); age > s.ttl {
		s.logger.Debug("conversation snapshot expired", "age", age, "ttl", s.ttl)
		s.Clear()
		return fresh
	}

	if len(snap.Messages) == 0 {
		return fresh
	}
	return snap.Messages
}

// Save persists the message log with the current write instant.
// Failures are logged and swallowed; a crash mid-turn loses at most the
// in-flight turn, never prior history.
func (s *SnapshotStore) Save(messages []Message) {
	data, err := json.Marshal(snapshot{
		Timestamp: s.now().UnixMilli(),
		Messages:  messages,
	})
	if err != nil {
		s.logger.Error("failed to encode conversation snapshot", "error", err)
		return
	}

	if err := s.storage.Set(data); err != nil {
		s.logger.Warn("failed to persist conversation snapshot", "error", err)
		return
	}
	s.logger.Debug("conversation snapshot saved", "messages", len(messages))
}

// Clear removes the persisted snapshot. Best-effort.
func (s *SnapshotStore) Clear() {
	if err := s.storage.Clear(); err != nil {
		s.logger.Warn("failed to clear conversation snapshot", "error", err)
	}
}

// FileStorage persists the snapshot as a single JSON file guarded by an
// advisory file lock, so concurrent CLI invocations don't interleave writes.
// Last writer wins.
type FileStorage struct {
	path string
	lock *flock.Flock
}

// NewFileStorage creates a file-backed storage at the given path.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	return &FileStorage{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Get reads the snapshot file. Returns ErrNoSnapshot if it does not exist.
func (f *FileStorage) Get() ([]byte, error) {
	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking snapshot file: %w", err)
	}
	defer f.unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	return data, nil
}

// Set writes the snapshot file with owner-only permissions.
func (f *FileStorage) Set(data []byte) error {
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("locking snapshot file: %w", err)
	}
	defer f.unlock()

	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	return nil
}

// Clear removes the snapshot file. Removing a missing file is not an error.
func (f *FileStorage) Clear() error {
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("locking snapshot file: %w", err)
	}
	defer f.unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing snapshot file: %w", err)
	}
	return nil
}

func (f *FileStorage) unlock() {
	// Advisory lock release failure is unrecoverable but harmless here.
	_ = f.lock.Unlock()
}
