package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/notify"
	"github.com/shiftgate/shiftgate/internal/domain/override"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
	"github.com/shiftgate/shiftgate/internal/domain/team"
)

// DefaultConsumptionWindow is how long an approved override stays valid for
// consumption. Enforced at query time only; stored status never expires.
const DefaultConsumptionWindow = 24 * time.Hour

// autoApproveNotes is the system review note for auto-approved requests.
const autoApproveNotes = "Auto-approved: the effective restriction does not require manager approval."

// OverrideService owns the override request lifecycle: creation,
// auto-approval, manager review, and consumption. Notifications on state
// transitions are best-effort; a delivery failure never rolls back the
// transition.
type OverrideService struct {
	store     override.Store
	resolver  *ResolverService
	directory team.Directory
	sink      notify.Sink
	clock     Clock
	logger    *slog.Logger

	consumptionWindow time.Duration
}

// OverrideOption configures OverrideService.
type OverrideOption func(*OverrideService)

// WithOverrideClock overrides the clock. For deterministic tests.
func WithOverrideClock(c Clock) OverrideOption {
	return func(s *OverrideService) {
		s.clock = c
	}
}

// WithConsumptionWindow overrides the query-time freshness window for
// consumable overrides.
func WithConsumptionWindow(d time.Duration) OverrideOption {
	return func(s *OverrideService) {
		s.consumptionWindow = d
	}
}

// NewOverrideService creates an OverrideService.
func NewOverrideService(
	store override.Store,
	resolver *ResolverService,
	directory team.Directory,
	sink notify.Sink,
	logger *slog.Logger,
	opts ...OverrideOption,
) *OverrideService {
	s := &OverrideService{
		store:             store,
		resolver:          resolver,
		directory:         directory,
		sink:              sink,
		clock:             SystemClock{},
		logger:            logger,
		consumptionWindow: DefaultConsumptionWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest opens an override request for a denied clock action.
//
// Preconditions: the action is recognized; the user holds no other pending
// request for the same action; the effective restriction exists and its mode
// is Flexible. When the restriction requires manager approval the request
// starts Pending and the user's team managers are notified; otherwise it is
// auto-approved immediately with a system review note.
func (s *OverrideService) CreateRequest(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction, reason string) (*override.Request, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown clock action %q", policy.ErrValidation, action)
	}

	effective, err := s.resolver.ResolveRestriction(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if effective == nil {
		return nil, fmt.Errorf("%w: no effective restriction; nothing to override", policy.ErrValidation)
	}
	if effective.Restriction.Mode != policy.ModeFlexible {
		return nil, fmt.Errorf("%w: override requests require flexible mode, effective mode is %s", policy.ErrValidation, effective.Restriction.Mode)
	}

	now := s.clock.Now()
	req := &override.Request{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		UserID:          userID,
		RequestedAction: action,
		RequestedAt:     now,
		Reason:          reason,
		Status:          override.StatusPending,
		CreatedAt:       now,
	}

	if !effective.Restriction.RequireManagerApproval {
		reviewedAt := now
		req.Status = override.StatusAutoApproved
		req.ReviewedAt = &reviewedAt
		req.ReviewNotes = autoApproveNotes
	}

	// The store performs the no-pending-duplicate check and the insert as one
	// atomic test-and-set.
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	if req.Status == override.StatusPending {
		s.notifyManagers(ctx, orgID, userID, req)
	}

	s.logger.Info("override request created",
		"org_id", orgID,
		"user_id", userID,
		"request_id", req.ID,
		"action", action,
		"status", req.Status,
	)
	return req, nil
}

// ReviewRequest approves or rejects a pending request.
//
// The reviewer must hold at least the Manager role; a Manager (not Admin)
// must manage a team containing the requesting user. Reviewing an
// already-decided request is a validation error, not idempotent. The
// requesting user is notified of the outcome best-effort.
func (s *OverrideService) ReviewRequest(ctx context.Context, orgID, requestID, reviewerID uuid.UUID, role team.Role, approved bool, notes string) (*override.Request, error) {
	if !role.AtLeastManager() {
		return nil, fmt.Errorf("%w: role %s may not review override requests", policy.ErrForbidden, role)
	}

	req, err := s.store.GetByID(ctx, orgID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != override.StatusPending {
		return nil, fmt.Errorf("%w: request is already %s", policy.ErrValidation, req.Status)
	}

	if role == team.RoleManager {
		manages, err := s.managesRequester(ctx, orgID, reviewerID, req.UserID)
		if err != nil {
			return nil, err
		}
		if !manages {
			return nil, fmt.Errorf("%w: reviewer does not manage a team containing the requesting user", policy.ErrForbidden)
		}
	}

	now := s.clock.Now()
	if approved {
		req.Status = override.StatusApproved
	} else {
		req.Status = override.StatusRejected
	}
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &now
	req.ReviewNotes = notes

	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}

	s.notifyOutcome(ctx, req)

	s.logger.Info("override request reviewed",
		"org_id", orgID,
		"request_id", req.ID,
		"reviewer_id", reviewerID,
		"status", req.Status,
	)
	return req, nil
}

// FindValidApproved returns the user's consumable override for the action:
// approved or auto-approved, unconsumed, and created within the consumption
// window. Returns nil when none qualifies; older unconsumed approvals are
// treated as expired without any stored state change.
func (s *OverrideService) FindValidApproved(ctx context.Context, orgID, userID uuid.UUID, action policy.ClockAction) (*override.Request, error) {
	cutoff := s.clock.Now().Add(-s.consumptionWindow)
	return s.store.FindConsumable(ctx, orgID, userID, action, cutoff)
}

// MarkUsed links a previously approved, unconsumed override to the clock
// entry it authorized. The status does not change; consumption is the side
// attribute ClockEntryID.
func (s *OverrideService) MarkUsed(ctx context.Context, orgID, overrideID, clockEntryID uuid.UUID) (*override.Request, error) {
	req, err := s.store.GetByID(ctx, orgID, overrideID)
	if err != nil {
		return nil, err
	}
	if !req.Status.ApprovedState() {
		return nil, fmt.Errorf("%w: override is %s, not approved", policy.ErrValidation, req.Status)
	}
	if req.Consumed() {
		return nil, fmt.Errorf("%w: override is already linked to a clock entry", policy.ErrConflict)
	}

	req.ClockEntryID = &clockEntryID
	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("override consumed",
		"org_id", orgID,
		"override_id", overrideID,
		"clock_entry_id", clockEntryID,
	)
	return req, nil
}

// GetRequest returns a request by id within the organization.
func (s *OverrideService) GetRequest(ctx context.Context, orgID, requestID uuid.UUID) (*override.Request, error) {
	return s.store.GetByID(ctx, orgID, requestID)
}

// ListRequests returns the organization's requests matching the filter.
func (s *OverrideService) ListRequests(ctx context.Context, orgID uuid.UUID, f override.ListFilter) ([]override.Request, error) {
	return s.store.List(ctx, orgID, f)
}

// managesRequester reports whether the reviewer manages at least one team the
// requesting user belongs to.
func (s *OverrideService) managesRequester(ctx context.Context, orgID, reviewerID, requesterID uuid.UUID) (bool, error) {
	teams, err := s.directory.ManagedTeams(ctx, orgID, reviewerID)
	if err != nil {
		return false, fmt.Errorf("%w: listing managed teams: %w", policy.ErrStore, err)
	}
	for _, t := range teams {
		member, err := s.directory.IsMember(ctx, orgID, t.ID, requesterID)
		if err != nil {
			return false, fmt.Errorf("%w: checking team membership: %w", policy.ErrStore, err)
		}
		if member {
			return true, nil
		}
	}
	return false, nil
}

// notifyManagers fans a pending-request notification out to the managers of
// the requesting user's teams. Best-effort: failures are logged and dropped.
func (s *OverrideService) notifyManagers(ctx context.Context, orgID, userID uuid.UUID, req *override.Request) {
	managers, err := s.directory.ManagersForUser(ctx, orgID, userID)
	if err != nil {
		s.logger.Warn("listing managers for notification failed", "user_id", userID, "error", err)
		return
	}
	for _, managerID := range managers {
		s.send(ctx, notify.Message{
			OrganizationID: orgID,
			UserID:         managerID,
			Kind:           notify.KindOverrideRequested,
			Title:          "Clock override requested",
			Body:           fmt.Sprintf("A %s override request awaits your review. Reason: %s", req.RequestedAction, req.Reason),
		})
	}
}

// notifyOutcome informs the requesting user of the review result.
func (s *OverrideService) notifyOutcome(ctx context.Context, req *override.Request) {
	kind := notify.KindOverrideApproved
	title := "Clock override approved"
	if req.Status == override.StatusRejected {
		kind = notify.KindOverrideRejected
		title = "Clock override rejected"
	}
	s.send(ctx, notify.Message{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Kind:           kind,
		Title:          title,
		Body:           fmt.Sprintf("Your %s override request has been %s.", req.RequestedAction, req.Status),
	})
}

// send delivers one notification best-effort.
func (s *OverrideService) send(ctx context.Context, msg notify.Message) {
	if err := s.sink.Notify(ctx, msg); err != nil {
		s.logger.Warn("notification failed",
			"kind", msg.Kind,
			"user_id", msg.UserID,
			"error", err,
		)
	}
}
