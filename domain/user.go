package domain

// User represents an authenticated identity and its profile document.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	DisplayName  string `json:"displayName,omitempty"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"createdAt"`
}
