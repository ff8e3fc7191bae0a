package repository

import "github.com/miniplanner/backend/domain"

// LocalStore is the durable on-device store that is authoritative only while
// no user is signed in. Tasks live in a single replace-on-write slot; a
// payload that fails to decode reads back as empty, never as an error.
type LocalStore interface {
	LoadTasks() []domain.Task
	SaveTasks(tasks []domain.Task) error

	LoadSettings() domain.Settings
	SaveSettings(settings domain.Settings) error

	// MigratedUser returns the id recorded by the last confirmed migration,
	// or "" when none ran yet.
	MigratedUser() string
	SetMigratedUser(userID string) error
}
