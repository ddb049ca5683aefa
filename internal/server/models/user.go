// Package models holds the persistent records of the account store.
package models

import "time"

// User is a registered account. Email and APIKey are both unique.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	APIKey       string
	CreatedAt    time.Time
}
