// Package notify contains the notification port. Delivery is best-effort:
// a failed notification is logged and discarded, and never fails the state
// transition that triggered it.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Kind classifies a notification for routing and templating downstream.
type Kind string

const (
	// KindOverrideRequested is sent to managers when a pending override
	// request is created.
	KindOverrideRequested Kind = "override_requested"
	// KindOverrideApproved is sent to the requesting user on approval.
	KindOverrideApproved Kind = "override_approved"
	// KindOverrideRejected is sent to the requesting user on rejection.
	KindOverrideRejected Kind = "override_rejected"
	// KindMissingBreak is sent when a mandatory break was not taken.
	KindMissingBreak Kind = "missing_break"
)

// Message is a single notification addressed to one user.
type Message struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Kind           Kind
	Title          string
	Body           string
}

// Sink receives notifications. Implementations wrap email, chat, or any other
// delivery channel. Errors are reported to the caller only so it can log
// them; callers must not propagate them further.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// LogSink writes notifications to the structured log. It is the default sink
// and the development backend.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify logs the notification.
func (s *LogSink) Notify(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		"org_id", msg.OrganizationID,
		"user_id", msg.UserID,
		"kind", msg.Kind,
		"title", msg.Title,
	)
	return nil
}

// Compile-time interface verification.
var _ Sink = (*LogSink)(nil)
