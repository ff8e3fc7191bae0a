package transport

import "github.com/miniplanner/backend/domain"

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProviderSignInRequest struct {
	Provider    string `json:"provider"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type TaskCreateRequest struct {
	Title    string          `json:"title"`
	Course   string          `json:"course"`
	DueDate  string          `json:"dueDate"`
	Priority domain.Priority `json:"priority"`
}

type SettingsRequest struct {
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	ReminderTime         string `json:"reminderTime"`
	RemindDaysAhead      int    `json:"remindDaysAhead"`
}
