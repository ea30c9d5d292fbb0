package persistence

import "time"

// Credential holds the API key issued at login. There is at most one row;
// absence means logged out.
type Credential struct {
	ID        uint `gorm:"primary_key"`
	APIKey    string
	UpdatedAt time.Time
}
