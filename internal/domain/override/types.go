// Package override contains domain types for clock override requests: a
// user-initiated appeal to bypass a denied clock action, subject to manager
// review or auto-approval.
package override

import (
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// Status is the review state of an override request. Pending is the only
// non-terminal state; there is no cancellation or re-opening.
type Status string

const (
	// StatusPending awaits manager review.
	StatusPending Status = "pending"
	// StatusApproved was approved by a reviewer.
	StatusApproved Status = "approved"
	// StatusRejected was rejected by a reviewer.
	StatusRejected Status = "rejected"
	// StatusAutoApproved was approved by the engine without review, because
	// the effective restriction does not require manager approval.
	StatusAutoApproved Status = "auto_approved"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusAutoApproved
}

// ApprovedState reports whether the status authorizes a clock action.
func (s Status) ApprovedState() bool {
	return s == StatusApproved || s == StatusAutoApproved
}

// Request is a clock override request. ClockEntryID stays nil until the
// override is consumed by linking it to the real time entry it authorized;
// consumption is a side attribute, not a status transition.
type Request struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UserID         uuid.UUID

	ClockEntryID    *uuid.UUID
	RequestedAction policy.ClockAction
	RequestedAt     time.Time
	Reason          string

	Status      Status
	ReviewedBy  *uuid.UUID
	ReviewedAt  *time.Time
	ReviewNotes string

	CreatedAt time.Time
}

// Consumed reports whether the override has been linked to a clock entry.
func (r *Request) Consumed() bool {
	return r.ClockEntryID != nil
}
