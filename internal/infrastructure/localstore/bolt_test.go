package localstore

import (
	"path/filepath"
	"testing"

	"github.com/miniplanner/backend/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTasksRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if got := store.LoadTasks(); len(got) != 0 {
		t.Fatalf("fresh store returned %d tasks, want 0", len(got))
	}

	tasks := []domain.Task{
		{ID: "1-a", Title: "Read chapter 3", Course: "HIST 1003", DueDate: "2025-04-01", Priority: domain.PriorityHigh, CreatedAt: 100},
		{ID: "2-b", Title: "Lab writeup", DueDate: "2025-04-02", Priority: domain.PriorityLow, Completed: true, CreatedAt: 200},
	}
	if err := store.SaveTasks(tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	got := store.LoadTasks()
	if len(got) != 2 {
		t.Fatalf("LoadTasks returned %d tasks, want 2", len(got))
	}
	if got[0] != tasks[0] || got[1] != tasks[1] {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestSaveTasksNilMeansEmpty(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveTasks([]domain.Task{{ID: "x", Title: "t", DueDate: "2025-01-01"}}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	if err := store.SaveTasks(nil); err != nil {
		t.Fatalf("SaveTasks(nil): %v", err)
	}
	if got := store.LoadTasks(); len(got) != 0 {
		t.Errorf("after clearing, got %d tasks, want 0", len(got))
	}
}

func TestLoadTasksGarbagePayload(t *testing.T) {
	store := openTestStore(t)

	if err := store.put(keyTasks, []byte("{definitely not json")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := store.LoadTasks(); len(got) != 0 {
		t.Errorf("garbage payload produced %d tasks, want empty list", len(got))
	}
}

func TestSettingsDefaultsAndNormalization(t *testing.T) {
	store := openTestStore(t)

	if got, want := store.LoadSettings(), domain.DefaultSettings(); got != want {
		t.Errorf("fresh settings = %+v, want defaults %+v", got, want)
	}

	if err := store.SaveSettings(domain.Settings{NotificationsEnabled: true, ReminderTime: "20:00", RemindDaysAhead: 99}); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got := store.LoadSettings()
	if !got.NotificationsEnabled || got.ReminderTime != "20:00" {
		t.Errorf("settings round trip mismatch: %+v", got)
	}
	if got.RemindDaysAhead != 30 {
		t.Errorf("RemindDaysAhead = %d, want clamped to 30", got.RemindDaysAhead)
	}

	if err := store.put(keySettings, []byte("broken")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, want := store.LoadSettings(), domain.DefaultSettings(); got != want {
		t.Errorf("garbage settings = %+v, want defaults %+v", got, want)
	}
}

func TestMigrationMarker(t *testing.T) {
	store := openTestStore(t)

	if got := store.MigratedUser(); got != "" {
		t.Fatalf("fresh marker = %q, want empty", got)
	}
	if err := store.SetMigratedUser("user-42"); err != nil {
		t.Fatalf("SetMigratedUser: %v", err)
	}
	if got := store.MigratedUser(); got != "user-42" {
		t.Errorf("marker = %q, want user-42", got)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.SaveTasks([]domain.Task{{ID: "a", Title: "persisted", DueDate: "2025-06-01", Priority: domain.PriorityMedium}}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got := reopened.LoadTasks()
	if len(got) != 1 || got[0].Title != "persisted" {
		t.Errorf("reopened store lost data: %+v", got)
	}
}
