package participantservice

import "errors"

// Typed failure conditions for coordinator operations. All of these are
// expected, caller-correctable outcomes; the transport layer maps them to
// protocol rejections. Store failures are the only errors propagated
// outside this set, wrapped and unchanged in meaning.
var (
	// ErrMatchNotFound indicates the match does not exist.
	ErrMatchNotFound = errors.New("match not found")

	// ErrSessionNotFound indicates the user has no session on this match.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidPhase indicates the operation is illegal in the match's
	// current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")

	// ErrMatchFull indicates a join against a match at capacity.
	ErrMatchFull = errors.New("match is full")

	// ErrDuplicateSession indicates the user already joined this match.
	ErrDuplicateSession = errors.New("user already joined this match")

	// ErrTooFewArrows indicates a submission with fewer arrows than the
	// match's arrows-per-end.
	ErrTooFewArrows = errors.New("not enough arrow values submitted")

	// ErrTooManyArrows indicates a submission with more arrows than the
	// match's arrows-per-end.
	ErrTooManyArrows = errors.New("too many arrow values submitted")

	// ErrInvalidArrowValue indicates an arrow outside 0-10 and not the max
	// marker.
	ErrInvalidArrowValue = errors.New("arrow value must be 0-10 or X")

	// ErrAlreadySubmitted indicates this end's arrows were already recorded
	// for the target archer.
	ErrAlreadySubmitted = errors.New("end already submitted for target")

	// ErrAlreadyDecided indicates the archer already confirmed or rejected
	// the current end.
	ErrAlreadyDecided = errors.New("end already decided by archer")

	// ErrNotAnArcher indicates a scoring operation by a non-scoring role.
	ErrNotAnArcher = errors.New("session has no scoring role")

	// ErrNoAssignment indicates the user has no entry in the submission
	// rotation (match not started, or judge role).
	ErrNoAssignment = errors.New("no scoring assignment for user")

	// ErrNoReport indicates the match report was already claimed by an
	// earlier call.
	ErrNoReport = errors.New("no report available")
)
