package domain

// Settings holds the local-only reminder preferences. They never sync to the
// remote store.
type Settings struct {
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	ReminderTime         string `json:"reminderTime"`
	RemindDaysAhead      int    `json:"remindDaysAhead"`
}

// DefaultSettings returns the values used when no settings slot exists yet.
func DefaultSettings() Settings {
	return Settings{
		NotificationsEnabled: false,
		ReminderTime:         "09:00",
		RemindDaysAhead:      7,
	}
}

// Normalize clamps the look-ahead window to 1..30 days and restores the
// default reminder time when the stored value is blank.
func (s *Settings) Normalize() {
	if s == nil {
		return
	}
	if s.ReminderTime == "" {
		s.ReminderTime = "09:00"
	}
	if s.RemindDaysAhead < 1 {
		s.RemindDaysAhead = 1
	}
	if s.RemindDaysAhead > 30 {
		s.RemindDaysAhead = 30
	}
}
