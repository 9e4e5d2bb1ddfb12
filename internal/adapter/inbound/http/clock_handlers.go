package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// validateClockRequest is the JSON body for POST /api/v1/clock/validate.
type validateClockRequest struct {
	OrganizationID  uuid.UUID `json:"organization_id"`
	UserID          uuid.UUID `json:"user_id"`
	Action          string    `json:"action"`
	TodayEventCount int       `json:"today_event_count"`
}

// decisionResponse is the JSON response for a clock decision.
type decisionResponse struct {
	Allowed            bool   `json:"allowed"`
	Message            string `json:"message,omitempty"`
	CanRequestOverride bool   `json:"can_request_override"`
	Source             string `json:"source,omitempty"`
	RestrictionID      string `json:"restriction_id,omitempty"`
}

// handleValidateClock decides whether the user may clock in or out now.
// POST /api/v1/clock/validate
func (h *APIHandler) handleValidateClock(w http.ResponseWriter, r *http.Request) {
	var req validateClockRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OrganizationID == uuid.Nil || req.UserID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "organization_id and user_id are required")
		return
	}

	action := policy.ClockAction(req.Action)
	d, err := h.validation.ValidateClockAction(r.Context(), req.OrganizationID, req.UserID, action, req.TodayEventCount)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	if h.metrics != nil {
		outcome := "deny"
		if d.Allowed {
			outcome = "allow"
		}
		h.metrics.DecisionsTotal.WithLabelValues(string(action), outcome).Inc()
	}

	resp := decisionResponse{
		Allowed:            d.Allowed,
		Message:            d.Message,
		CanRequestOverride: d.CanRequestOverride,
	}
	if d.Restriction != nil {
		resp.Source = string(d.Restriction.Source)
		resp.RestrictionID = d.Restriction.Restriction.ID.String()
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// effectivePoliciesResponse reports the policies resolved for a user.
type effectivePoliciesResponse struct {
	Restriction       *restrictionResponse `json:"restriction,omitempty"`
	RestrictionSource string               `json:"restriction_source,omitempty"`
	BreakPolicy       *breakPolicyResponse `json:"break_policy,omitempty"`
	BreakPolicySource string               `json:"break_policy_source,omitempty"`
}

// handleEffectivePolicies resolves and reports the user's effective policies.
// GET /api/v1/policies/effective?organization_id=...&user_id=...
func (h *APIHandler) handleEffectivePolicies(w http.ResponseWriter, r *http.Request) {
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

	var resp effectivePoliciesResponse

	er, err := h.resolver.ResolveRestriction(r.Context(), orgID, userID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if er != nil {
		rr := toRestrictionResponse(&er.Restriction)
		resp.Restriction = &rr
		resp.RestrictionSource = string(er.Source)
	}

	ep, err := h.resolver.ResolveBreakPolicy(r.Context(), orgID, userID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if ep != nil {
		pr := toBreakPolicyResponse(&ep.Policy)
		resp.BreakPolicy = &pr
		resp.BreakPolicySource = string(ep.Source)
	}

	h.respondJSON(w, http.StatusOK, resp)
}
