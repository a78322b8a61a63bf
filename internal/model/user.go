package model

import "time"

// Delivery channel constants
const (
	ChannelInApp = "in-app"
	ChannelEmail = "email"
)

// User represents a system user. IDs are opaque strings carried over
// from the legacy document store, not generated by this service.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Role         string    `json:"role" db:"role"`
	Channel      string    `json:"channel" db:"channel"`
	ReminderDays int       `json:"reminder_days" db:"reminder_days"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PreferredChannel returns the user's delivery channel, defaulting to
// in-app when the record carries no preference.
func (u *User) PreferredChannel() string {
	if u.Channel == ChannelEmail {
		return ChannelEmail
	}
	return ChannelInApp
}
