// Package models provides data models for the scam scanner system.
package models

import "time"

// User represents an email-identified caller. Identity is a bare, unverified
// email string; at most one row exists per normalized (trimmed, lower-cased)
// email.
type User struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	IsAdmin          bool      `json:"isAdmin" db:"is_admin"`
	IsPremium        bool      `json:"isPremium" db:"is_premium"`
	SubscribedToBlog bool      `json:"subscribedToBlog" db:"subscribed_to_blog"`
	RequestedPremium bool      `json:"requestedPremium" db:"requested_premium"`
	JoinedAt         time.Time `json:"joinedAt" db:"joined_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

// UserUpdates carries the optional fields merged over an existing user row
// during an upsert. Nil fields are left untouched; IsAdmin only ever ORs in.
type UserUpdates struct {
	IsAdmin          *bool
	IsPremium        *bool
	SubscribedToBlog *bool
	RequestedPremium *bool
}
