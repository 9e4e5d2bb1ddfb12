package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/override"
	"github.com/shiftgate/shiftgate/internal/domain/policy"
	"github.com/shiftgate/shiftgate/internal/domain/team"
)

// createOverrideRequest is the JSON body for POST /api/v1/overrides.
type createOverrideRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Action         string    `json:"action"`
	Reason         string    `json:"reason"`
}

// reviewOverrideRequest is the JSON body for the review endpoint.
type reviewOverrideRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	ReviewerID     uuid.UUID `json:"reviewer_id"`
	ReviewerRole   string    `json:"reviewer_role"`
	Approved       bool      `json:"approved"`
	Notes          string    `json:"notes,omitempty"`
}

// consumeOverrideRequest links an approved override to a clock entry.
type consumeOverrideRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	ClockEntryID   uuid.UUID `json:"clock_entry_id"`
}

// overrideResponse is the JSON shape of an override request.
type overrideResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	UserID         uuid.UUID  `json:"user_id"`
	ClockEntryID   *uuid.UUID `json:"clock_entry_id,omitempty"`

	RequestedAction string    `json:"requested_action"`
	RequestedAt     time.Time `json:"requested_at"`
	Reason          string    `json:"reason"`

	Status      string     `json:"status"`
	ReviewedBy  *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func toOverrideResponse(r *override.Request) overrideResponse {
	return overrideResponse{
		ID:              r.ID,
		OrganizationID:  r.OrganizationID,
		UserID:          r.UserID,
		ClockEntryID:    r.ClockEntryID,
		RequestedAction: string(r.RequestedAction),
		RequestedAt:     r.RequestedAt,
		Reason:          r.Reason,
		Status:          string(r.Status),
		ReviewedBy:      r.ReviewedBy,
		ReviewedAt:      r.ReviewedAt,
		ReviewNotes:     r.ReviewNotes,
		CreatedAt:       r.CreatedAt,
	}
}

// handleCreateOverride opens an override request for a denied clock action.
// POST /api/v1/overrides
func (h *APIHandler) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	var req createOverrideRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OrganizationID == uuid.Nil || req.UserID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "organization_id and user_id are required")
		return
	}

	created, err := h.overrides.CreateRequest(r.Context(), req.OrganizationID, req.UserID, policy.ClockAction(req.Action), req.Reason)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.OverrideTransitionsTotal.WithLabelValues(string(created.Status)).Inc()
	}
	h.respondJSON(w, http.StatusCreated, toOverrideResponse(created))
}

// handleListOverrides lists override requests, optionally filtered.
// GET /api/v1/overrides?organization_id=...&user_id=...&status=...
func (h *APIHandler) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryUUID(r, "organization_id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	var filter override.ListFilter
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		filter.UserID = &userID
	}
	filter.Status = override.Status(r.URL.Query().Get("status"))

	requests, err := h.overrides.ListRequests(r.Context(), orgID, filter)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	out := make([]overrideResponse, len(requests))
	for i := range requests {
		out[i] = toOverrideResponse(&requests[i])
	}
	h.respondJSON(w, http.StatusOK, out)
}

// handleGetOverride returns one override request.
// GET /api/v1/overrides/{id}?organization_id=...
func (h *APIHandler) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := h.orgAndID(w, r)
	if !ok {
		return
	}
	req, err := h.overrides.GetRequest(r.Context(), orgID, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOverrideResponse(req))
}

// handleReviewOverride approves or rejects a pending request.
// POST /api/v1/overrides/{id}/review
func (h *APIHandler) handleReviewOverride(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathUUID(r, "id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid override id")
		return
	}
	var req reviewOverrideRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OrganizationID == uuid.Nil || req.ReviewerID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "organization_id and reviewer_id are required")
		return
	}

	reviewed, err := h.overrides.ReviewRequest(r.Context(), req.OrganizationID, id, req.ReviewerID, team.Role(req.ReviewerRole), req.Approved, req.Notes)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.OverrideTransitionsTotal.WithLabelValues(string(reviewed.Status)).Inc()
	}
	h.respondJSON(w, http.StatusOK, toOverrideResponse(reviewed))
}

// handleConsumeOverride links an approved override to the clock entry it
// authorized.
// POST /api/v1/overrides/{id}/consume
func (h *APIHandler) handleConsumeOverride(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathUUID(r, "id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid override id")
		return
	}
	var req consumeOverrideRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OrganizationID == uuid.Nil || req.ClockEntryID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "organization_id and clock_entry_id are required")
		return
	}

	consumed, err := h.overrides.MarkUsed(r.Context(), req.OrganizationID, id, req.ClockEntryID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOverrideResponse(consumed))
}

// handleFindConsumable returns the user's freshest consumable override for
// the action, or 404.
// GET /api/v1/overrides/consumable?organization_id=...&user_id=...&action=...
func (h *APIHandler) handleFindConsumable(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryUUID(r, "organization_id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "organization_id is required")
		return
	}
	userID, err := queryUUID(r, "user_id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	action := policy.ClockAction(r.URL.Query().Get("action"))
	if !action.Valid() {
		h.respondError(w, http.StatusBadRequest, "action must be clock_in or clock_out")
		return
	}

	req, err := h.overrides.FindValidApproved(r.Context(), orgID, userID, action)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if req == nil {
		h.respondError(w, http.StatusNotFound, "no consumable override")
		return
	}
	h.respondJSON(w, http.StatusOK, toOverrideResponse(req))
}
