package monitor

import "time"

type Status struct {
	Postgres   bool      `json:"postgres"`
	Redis      bool      `json:"redis"`
	LocalStore bool      `json:"local_store"`
	LastCheck  time.Time `json:"last_check"`
}
