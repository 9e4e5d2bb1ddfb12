package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shiftgate/shiftgate/internal/domain/breaks"
)

// breakActionRequest is the JSON body for starting or ending a break.
// ClockEntryID is required on start and ignored on end.
type breakActionRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	ClockEntryID   uuid.UUID `json:"clock_entry_id,omitempty"`
}

// breakEntryResponse is the JSON shape of a break entry.
type breakEntryResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	ClockEntryID   uuid.UUID `json:"clock_entry_id"`

	BreakStart      time.Time  `json:"break_start"`
	BreakEnd        *time.Time `json:"break_end,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

func toBreakEntryResponse(e *breaks.Entry) breakEntryResponse {
	return breakEntryResponse{
		ID:              e.ID,
		OrganizationID:  e.OrganizationID,
		UserID:          e.UserID,
		ClockEntryID:    e.ClockEntryID,
		BreakStart:      e.BreakStart,
		BreakEnd:        e.BreakEnd,
		DurationMinutes: e.DurationMinutes,
	}
}

// handleStartBreak opens a break for the user's current clock entry.
// POST /api/v1/breaks/start
func (h *APIHandler) handleStartBreak(w http.ResponseWriter, r *http.Request) {
	var req breakActionRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OrganizationID == uuid.Nil || req.UserID == uuid.Nil || req.ClockEntryID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "organization_id, user_id and clock_entry_id are required")
		return
	}

	entry, err := h.breaks.StartBreak(r.Context(), req.OrganizationID, req.UserID, req.ClockEntryID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toBreakEntryResponse(entry))
}

// handleEndBreak closes the user's open break.
// POST /api/v1/breaks/end
func (h *APIHandler) handleEndBreak(w http.ResponseWriter, r *http.Request) {
	var req breakActionRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OrganizationID == uuid.Nil || req.UserID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "organization_id and user_id are required")
		return
	}

	entry, err := h.breaks.EndBreak(r.Context(), req.OrganizationID, req.UserID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toBreakEntryResponse(entry))
}

// breakDeductionRequest is the JSON body for computing the break deduction of
// a clock interval.
type breakDeductionRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	ClockEntryID   uuid.UUID `json:"clock_entry_id"`
	ClockIn        time.Time `json:"clock_in"`
	ClockOut       time.Time `json:"clock_out"`
}

// breakDeductionResponse reports the computed deduction and the worked
// minutes after it.
type breakDeductionResponse struct {
	DeductedMinutes int    `json:"deducted_minutes"`
	WorkedMinutes   int    `json:"worked_minutes"`
	Source          string `json:"source,omitempty"`
	Mode            string `json:"mode,omitempty"`
}

// handleBreakDeduction computes the break minutes to subtract from a clock
// interval.
// POST /api/v1/breaks/deduction
func (h *APIHandler) handleBreakDeduction(w http.ResponseWriter, r *http.Request) {
	var req breakDeductionRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OrganizationID == uuid.Nil || req.UserID == uuid.Nil || req.ClockEntryID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "organization_id, user_id and clock_entry_id are required")
		return
	}
	if !req.ClockOut.After(req.ClockIn) {
		h.respondError(w, http.StatusBadRequest, "clock_out must be after clock_in")
		return
	}

	d, err := h.breaks.DeductedMinutes(r.Context(), req.OrganizationID, req.UserID, req.ClockEntryID, req.ClockIn, req.ClockOut)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if h.metrics != nil && d.Mode != "" {
		h.metrics.BreakDeductionsTotal.WithLabelValues(string(d.Mode)).Inc()
	}

	worked := int(req.ClockOut.Sub(req.ClockIn).Minutes()) - d.Minutes
	if worked < 0 {
		worked = 0
	}
	h.respondJSON(w, http.StatusOK, breakDeductionResponse{
		DeductedMinutes: d.Minutes,
		WorkedMinutes:   worked,
		Source:          string(d.Source),
		Mode:            string(d.Mode),
	})
}
