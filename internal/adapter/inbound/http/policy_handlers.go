package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// restrictionRequest is the JSON body for creating or updating a clock
// restriction. Time-of-day fields use "HH:MM" or "HH:MM:SS".
type restrictionRequest struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	TeamID         *uuid.UUID `json:"team_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`

	Mode string `json:"mode"`

	ClockInEarliest  *string `json:"clock_in_earliest,omitempty"`
	ClockInLatest    *string `json:"clock_in_latest,omitempty"`
	ClockOutEarliest *string `json:"clock_out_earliest,omitempty"`
	ClockOutLatest   *string `json:"clock_out_latest,omitempty"`

	Condition string `json:"condition,omitempty"`

	EnforceSchedule        bool `json:"enforce_schedule"`
	RequireManagerApproval bool `json:"require_manager_approval"`
	MaxDailyClockEvents    *int `json:"max_daily_clock_events,omitempty"`

	IsActive bool `json:"is_active"`
}

// restrictionResponse is the JSON shape of a stored restriction.
type restrictionResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	TeamID         *uuid.UUID `json:"team_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`

	Mode  string `json:"mode"`
	Scope string `json:"scope"`

	ClockInEarliest  *string `json:"clock_in_earliest,omitempty"`
	ClockInLatest    *string `json:"clock_in_latest,omitempty"`
	ClockOutEarliest *string `json:"clock_out_earliest,omitempty"`
	ClockOutLatest   *string `json:"clock_out_latest,omitempty"`

	Condition string `json:"condition,omitempty"`

	EnforceSchedule        bool `json:"enforce_schedule"`
	RequireManagerApproval bool `json:"require_manager_approval"`
	MaxDailyClockEvents    *int `json:"max_daily_clock_events,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (req *restrictionRequest) toDomain() (*policy.ClockRestriction, error) {
	r := &policy.ClockRestriction{
		OrganizationID:         req.OrganizationID,
		TeamID:                 req.TeamID,
		UserID:                 req.UserID,
		Mode:                   policy.RestrictionMode(req.Mode),
		Condition:              req.Condition,
		EnforceSchedule:        req.EnforceSchedule,
		RequireManagerApproval: req.RequireManagerApproval,
		MaxDailyClockEvents:    req.MaxDailyClockEvents,
		IsActive:               req.IsActive,
	}
	var err error
	if r.ClockInEarliest, err = parseTimeOfDayPtr(req.ClockInEarliest); err != nil {
		return nil, err
	}
	if r.ClockInLatest, err = parseTimeOfDayPtr(req.ClockInLatest); err != nil {
		return nil, err
	}
	if r.ClockOutEarliest, err = parseTimeOfDayPtr(req.ClockOutEarliest); err != nil {
		return nil, err
	}
	if r.ClockOutLatest, err = parseTimeOfDayPtr(req.ClockOutLatest); err != nil {
		return nil, err
	}
	return r, nil
}

func toRestrictionResponse(r *policy.ClockRestriction) restrictionResponse {
	return restrictionResponse{
		ID:                     r.ID,
		OrganizationID:         r.OrganizationID,
		TeamID:                 r.TeamID,
		UserID:                 r.UserID,
		Mode:                   string(r.Mode),
		Scope:                  string(r.Scope()),
		ClockInEarliest:        formatTimeOfDayPtr(r.ClockInEarliest),
		ClockInLatest:          formatTimeOfDayPtr(r.ClockInLatest),
		ClockOutEarliest:       formatTimeOfDayPtr(r.ClockOutEarliest),
		ClockOutLatest:         formatTimeOfDayPtr(r.ClockOutLatest),
		Condition:              r.Condition,
		EnforceSchedule:        r.EnforceSchedule,
		RequireManagerApproval: r.RequireManagerApproval,
		MaxDailyClockEvents:    r.MaxDailyClockEvents,
		IsActive:               r.IsActive,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// handleCreateRestriction creates a clock restriction.
// POST /api/v1/restrictions
func (h *APIHandler) handleCreateRestriction(w http.ResponseWriter, r *http.Request) {
	var req restrictionRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	restriction, err := req.toDomain()
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	created, err := h.admin.CreateRestriction(r.Context(), restriction)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toRestrictionResponse(created))
}

// handleListRestrictions lists the organization's restrictions.
// GET /api/v1/restrictions?organization_id=...
func (h *APIHandler) handleListRestrictions(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryUUID(r, "organization_id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "organization_id is required")
		return
	}
	restrictions, err := h.admin.ListRestrictions(r.Context(), orgID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	out := make([]restrictionResponse, len(restrictions))
	for i := range restrictions {
		out[i] = toRestrictionResponse(&restrictions[i])
	}
	h.respondJSON(w, http.StatusOK, out)
}

// handleGetRestriction returns one restriction.
// GET /api/v1/restrictions/{id}?organization_id=...
func (h *APIHandler) handleGetRestriction(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := h.orgAndID(w, r)
	if !ok {
		return
	}
	restriction, err := h.admin.GetRestriction(r.Context(), orgID, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toRestrictionResponse(restriction))
}

// handleUpdateRestriction updates a restriction's forward-looking fields.
// PUT /api/v1/restrictions/{id}
func (h *APIHandler) handleUpdateRestriction(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathUUID(r, "id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid restriction id")
		return
	}
	var req restrictionRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	restriction, err := req.toDomain()
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	restriction.ID = id
	updated, err := h.admin.UpdateRestriction(r.Context(), restriction)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toRestrictionResponse(updated))
}

// handleDeleteRestriction removes a restriction.
// DELETE /api/v1/restrictions/{id}?organization_id=...
func (h *APIHandler) handleDeleteRestriction(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := h.orgAndID(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteRestriction(r.Context(), orgID, id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// breakWindowRequest is one per-weekday window in a break policy request.
type breakWindowRequest struct {
	DayOfWeek          int    `json:"day_of_week"`
	WindowStart        string `json:"window_start"`
	WindowEnd          string `json:"window_end"`
	MinDurationMinutes int    `json:"min_duration_minutes"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
	IsMandatory        bool   `json:"is_mandatory"`
}

// breakPolicyRequest is the JSON body for creating or updating a break
// policy.
type breakPolicyRequest struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	TeamID         *uuid.UUID `json:"team_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`

	Name         string `json:"name"`
	TrackingMode string `json:"tracking_mode"`

	Windows []breakWindowRequest `json:"windows"`

	NotifyMissingBreak bool `json:"notify_missing_break"`
	IsActive           bool `json:"is_active"`
}

// breakWindowResponse is the JSON shape of a stored break window.
type breakWindowResponse struct {
	ID                 uuid.UUID `json:"id"`
	DayOfWeek          int       `json:"day_of_week"`
	WindowStart        string    `json:"window_start"`
	WindowEnd          string    `json:"window_end"`
	MinDurationMinutes int       `json:"min_duration_minutes"`
	MaxDurationMinutes int       `json:"max_duration_minutes"`
	IsMandatory        bool      `json:"is_mandatory"`
}

// breakPolicyResponse is the JSON shape of a stored break policy.
type breakPolicyResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	TeamID         *uuid.UUID `json:"team_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`

	Name         string `json:"name"`
	TrackingMode string `json:"tracking_mode"`
	Scope        string `json:"scope"`

	Windows []breakWindowResponse `json:"windows"`

	NotifyMissingBreak bool      `json:"notify_missing_break"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (req *breakPolicyRequest) toDomain() (*policy.BreakPolicy, error) {
	p := &policy.BreakPolicy{
		OrganizationID:     req.OrganizationID,
		TeamID:             req.TeamID,
		UserID:             req.UserID,
		Name:               req.Name,
		TrackingMode:       policy.TrackingMode(req.TrackingMode),
		NotifyMissingBreak: req.NotifyMissingBreak,
		IsActive:           req.IsActive,
	}
	for _, wr := range req.Windows {
		start, err := policy.ParseTimeOfDay(wr.WindowStart)
		if err != nil {
			return nil, err
		}
		end, err := policy.ParseTimeOfDay(wr.WindowEnd)
		if err != nil {
			return nil, err
		}
		p.Windows = append(p.Windows, policy.BreakWindow{
			DayOfWeek:          wr.DayOfWeek,
			WindowStart:        start,
			WindowEnd:          end,
			MinDurationMinutes: wr.MinDurationMinutes,
			MaxDurationMinutes: wr.MaxDurationMinutes,
			IsMandatory:        wr.IsMandatory,
		})
	}
	return p, nil
}

func toBreakPolicyResponse(p *policy.BreakPolicy) breakPolicyResponse {
	resp := breakPolicyResponse{
		ID:                 p.ID,
		OrganizationID:     p.OrganizationID,
		TeamID:             p.TeamID,
		UserID:             p.UserID,
		Name:               p.Name,
		TrackingMode:       string(p.TrackingMode),
		Scope:              string(p.Scope()),
		NotifyMissingBreak: p.NotifyMissingBreak,
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	for _, w := range p.Windows {
		resp.Windows = append(resp.Windows, breakWindowResponse{
			ID:                 w.ID,
			DayOfWeek:          w.DayOfWeek,
			WindowStart:        w.WindowStart.String(),
			WindowEnd:          w.WindowEnd.String(),
			MinDurationMinutes: w.MinDurationMinutes,
			MaxDurationMinutes: w.MaxDurationMinutes,
			IsMandatory:        w.IsMandatory,
		})
	}
	return resp
}

// handleCreateBreakPolicy creates a break policy with its windows.
// POST /api/v1/break-policies
func (h *APIHandler) handleCreateBreakPolicy(w http.ResponseWriter, r *http.Request) {
	var req breakPolicyRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	bp, err := req.toDomain()
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	created, err := h.admin.CreateBreakPolicy(r.Context(), bp)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toBreakPolicyResponse(created))
}

// handleListBreakPolicies lists the organization's break policies.
// GET /api/v1/break-policies?organization_id=...
func (h *APIHandler) handleListBreakPolicies(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryUUID(r, "organization_id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "organization_id is required")
		return
	}
	policies, err := h.admin.ListBreakPolicies(r.Context(), orgID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	out := make([]breakPolicyResponse, len(policies))
	for i := range policies {
		out[i] = toBreakPolicyResponse(&policies[i])
	}
	h.respondJSON(w, http.StatusOK, out)
}

// handleGetBreakPolicy returns one break policy.
// GET /api/v1/break-policies/{id}?organization_id=...
func (h *APIHandler) handleGetBreakPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := h.orgAndID(w, r)
	if !ok {
		return
	}
	bp, err := h.admin.GetBreakPolicy(r.Context(), orgID, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toBreakPolicyResponse(bp))
}

// handleUpdateBreakPolicy replaces a break policy and its windows.
// PUT /api/v1/break-policies/{id}
func (h *APIHandler) handleUpdateBreakPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathUUID(r, "id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid break policy id")
		return
	}
	var req breakPolicyRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	bp, err := req.toDomain()
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	bp.ID = id
	updated, err := h.admin.UpdateBreakPolicy(r.Context(), bp)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toBreakPolicyResponse(updated))
}

// handleDeleteBreakPolicy removes a break policy.
// DELETE /api/v1/break-policies/{id}?organization_id=...
func (h *APIHandler) handleDeleteBreakPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := h.orgAndID(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteBreakPolicy(r.Context(), orgID, id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// orgAndID extracts the organization_id query parameter and the id path
// parameter, writing the error response itself on failure.
func (h *APIHandler) orgAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orgID, err := queryUUID(r, "organization_id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "organization_id is required")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := h.pathUUID(r, "id")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, id, true
}

func parseTimeOfDayPtr(s *string) (*policy.TimeOfDay, error) {
	if s == nil {
		return nil, nil
	}
	t, err := policy.ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTimeOfDayPtr(t *policy.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}
