package policy

import "errors"

// Engine error taxonomy. All engine operations classify failures into one of
// these sentinels so callers can branch with errors.Is regardless of which
// store backend produced them.
var (
	// ErrValidation indicates malformed input, a wrong mode for the requested
	// operation, or a missing prerequisite policy.
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates a uniqueness violation: duplicate active policy
	// scope, duplicate pending override request, or duplicate open break.
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates an unknown id, or an id that exists outside the
	// caller's organization. The two cases are deliberately indistinguishable
	// so cross-tenant existence never leaks.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates a role or team-management check failed.
	ErrForbidden = errors.New("forbidden")

	// ErrStore indicates a store/connectivity failure. Always propagated,
	// never retried by the engine; state is left as of the last successful
	// write.
	ErrStore = errors.New("store error")
)
