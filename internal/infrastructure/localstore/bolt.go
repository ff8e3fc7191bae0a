package localstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// Slot keys. The names carry a version suffix so a future format change can
// live next to the old payloads.
const (
	keyTasks     = "planner_tasks_v1"
	keySettings  = "planner_settings_v1"
	keyMigration = "planner_tasks_migrated_v1"
)

// Store wraps BoltDB to persist the pre-authentication task list, the local
// settings and the migration marker as independent string-keyed slots.
// Writers from two processes race with last-write-wins semantics; there is no
// cross-process coordination.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte("planner")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: bucket,
	}, nil
}

// LoadTasks reads the full task list. A missing slot or a payload that fails
// to decode yields an empty list; parse failure is treated as no data.
func (s *Store) LoadTasks() []domain.Task {
	raw := s.get(keyTasks)
	if len(raw) == 0 {
		return []domain.Task{}
	}
	var tasks []domain.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return []domain.Task{}
	}
	return tasks
}

// SaveTasks replaces the whole slot in a single write transaction.
func (s *Store) SaveTasks(tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return s.put(keyTasks, payload)
}

// LoadSettings returns the stored settings, or defaults when the slot is
// absent or undecodable. Values are normalized on the way out.
func (s *Store) LoadSettings() domain.Settings {
	settings := domain.DefaultSettings()
	if raw := s.get(keySettings); len(raw) > 0 {
		if err := json.Unmarshal(raw, &settings); err != nil {
			settings = domain.DefaultSettings()
		}
	}
	settings.Normalize()
	return settings
}

func (s *Store) SaveSettings(settings domain.Settings) error {
	settings.Normalize()
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.put(keySettings, payload)
}

// MigratedUser returns the user id recorded by the last confirmed migration.
func (s *Store) MigratedUser() string {
	return string(s.get(keyMigration))
}

func (s *Store) SetMigratedUser(userID string) error {
	return s.put(keyMigration, []byte(userID))
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

func (s *Store) get(key string) []byte {
	if s == nil || s.db == nil {
		return nil
	}
	var value []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value
}

func (s *Store) put(key string, value []byte) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

var _ repository.LocalStore = (*Store)(nil)
