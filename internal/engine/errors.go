package engine

import "strings"

// InvalidStateError marks a precondition failure: the operation is well formed
// but the candidate's current state forbids it (duplicate attach, already
// completed, candidate rejected, no offer to update). The reason string is
// surfaced verbatim to callers.
type InvalidStateError struct {
	Reason string
}

func (e InvalidStateError) Error() string { return e.Reason }

// ValidationError marks malformed input. Issues stay collectible as a list of
// field-level messages.
type ValidationError struct {
	Issues []string
}

func (e ValidationError) Error() string { return strings.Join(e.Issues, "; ") }
