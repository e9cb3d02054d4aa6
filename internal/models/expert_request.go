package models

import (
	"time"

	"github.com/scam-scanner/internal/types"
)

// ExpertRequestStatus tracks the manual follow-up workflow
type ExpertRequestStatus string

const (
	ExpertStatusPending   ExpertRequestStatus = "pending"
	ExpertStatusAssigned  ExpertRequestStatus = "assigned"
	ExpertStatusCompleted ExpertRequestStatus = "completed"
	ExpertStatusDismissed ExpertRequestStatus = "dismissed"
)

// Valid reports whether the status is one of the workflow states.
func (s ExpertRequestStatus) Valid() bool {
	switch s {
	case ExpertStatusPending, ExpertStatusAssigned, ExpertStatusCompleted, ExpertStatusDismissed:
		return true
	}
	return false
}

// ExpertAddress pairs an address with how it entered the request
type ExpertAddress struct {
	Address string            `json:"address"`
	Role    types.AddressRole `json:"role"`
}

// ExpertRequest is a mutable record created when a user asks for human
// follow-up on a scenario. Status transitions pending -> admin-set values.
type ExpertRequest struct {
	ID                string              `json:"id" db:"id"`
	Scenario          string              `json:"scenario" db:"scenario"`
	Addresses         []ExpertAddress     `json:"addresses" db:"addresses"`
	Notes             string              `json:"notes,omitempty" db:"notes"`
	RequesterEmail    *string             `json:"requesterEmail,omitempty" db:"requester_email"`
	AdminOverrideUsed bool                `json:"adminOverrideUsed" db:"admin_override_used"`
	Status            ExpertRequestStatus `json:"status" db:"status"`
	AssignedTo        *string             `json:"assignedTo,omitempty" db:"assigned_to"`
	CompletedAt       *time.Time          `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt         time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time           `json:"updatedAt" db:"updated_at"`
}
