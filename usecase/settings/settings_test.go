package settings

import (
	"path/filepath"
	"testing"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/internal/infrastructure/localstore"
)

type fakeScheduler struct {
	refreshed int
}

func (f *fakeScheduler) Refresh() { f.refreshed++ }

func newTestUseCase(t *testing.T) (*UseCase, *fakeScheduler) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	scheduler := &fakeScheduler{}
	return New(store, scheduler, nil), scheduler
}

func TestGetReturnsDefaultsInitially(t *testing.T) {
	uc, _ := newTestUseCase(t)
	if got, want := uc.Get(), domain.DefaultSettings(); got != want {
		t.Errorf("Get() = %+v, want defaults %+v", got, want)
	}
}

func TestUpdatePersistsAndReschedules(t *testing.T) {
	uc, scheduler := newTestUseCase(t)

	got, err := uc.Update(domain.Settings{NotificationsEnabled: true, ReminderTime: "18:00", RemindDaysAhead: 50})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.RemindDaysAhead != 30 {
		t.Errorf("RemindDaysAhead = %d, want clamped to 30", got.RemindDaysAhead)
	}
	if scheduler.refreshed != 1 {
		t.Errorf("scheduler refreshed %d times, want 1", scheduler.refreshed)
	}

	stored := uc.Get()
	if !stored.NotificationsEnabled || stored.ReminderTime != "18:00" || stored.RemindDaysAhead != 30 {
		t.Errorf("stored settings = %+v", stored)
	}
}
