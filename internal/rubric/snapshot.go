package rubric

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

// SnapshotVersion is the on-disk format version written by SaveSnapshot.
const SnapshotVersion = 1

// Snapshot is the serialized content of a Store.
type Snapshot struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Rubrics []*Rubric `json:"rubrics"`
	Indexes []*Index  `json:"indexes"`
}

// Snapshot captures every rubric and index in the store.
func (s *Store) Snapshot() *Snapshot {
	return &Snapshot{
		Version: SnapshotVersion,
		SavedAt: time.Now().UTC(),
		Rubrics: s.Rubrics(),
		Indexes: s.Indexes(),
	}
}

// Restore loads a snapshot into the store. Rubrics are stored before indexes
// so an index whose rubric is missing is rejected.
func (s *Store) Restore(snap *Snapshot) error {
	for _, r := range snap.Rubrics {
		if err := s.PutRubric(r); err != nil {
			return err
		}
	}
	for _, idx := range snap.Indexes {
		if _, err := s.Rubric(idx.RubricID); err != nil {
			return errors.New(errors.ErrCodeSnapshotCorrupt,
				fmt.Sprintf("index %s references unknown rubric", idx.Key()), err)
		}
		if err := s.PutIndex(idx); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot writes snap to path atomically while holding an exclusive
// lock on path+".lock".
func SaveSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire snapshot lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot from path under a shared lock.
func LoadSnapshot(path string) (*Snapshot, error) {
	// The lock file lives next to the snapshot, so a missing directory
	// must be reported before locking.
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, snapshotNotFound(path, err)
		}
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire snapshot lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, snapshotNotFound(path, err)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.New(errors.ErrCodeSnapshotCorrupt, fmt.Sprintf("snapshot %s is not valid JSON", path), err).
			WithDetail("path", path).
			WithSuggestion("Delete the file and re-run rubricrank index")
	}
	if snap.Version != SnapshotVersion {
		return nil, errors.Newf(errors.ErrCodeSnapshotCorrupt, "snapshot %s has version %d, want %d", path, snap.Version, SnapshotVersion).
			WithDetail("path", path)
	}
	return &snap, nil
}

func snapshotNotFound(path string, cause error) error {
	return errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("snapshot %s not found", path), cause).
		WithDetail("path", path)
}
