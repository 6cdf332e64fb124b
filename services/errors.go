package services

import "errors"

// Not-found errors: the referenced entity does not exist or does not belong
// to the session named by the caller.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrRoundNotFound       = errors.New("round not found for session")
	ErrParticipantNotFound = errors.New("participant not part of this session")
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrInviterNotFound     = errors.New("inviter not found in session")
)

// State-conflict errors: the operation is legal in general but not in the
// session's current state. Never retried internally.
var (
	ErrSessionAlreadyComplete = errors.New("session already complete")
	ErrRoundAlreadyActive     = errors.New("another round is still active")
	ErrRoundNotActive         = errors.New("round not active")
	ErrRoundAlreadyComplete   = errors.New("round already complete")
	ErrInviteRequired         = errors.New("invite required to join this session")
)

// Validation and capacity errors: rejected before touching state.
var (
	ErrInsufficientQuestions = errors.New("not enough questions selected for the configured number of rounds")
	ErrNoRoundsConfigured    = errors.New("no rounds configured")
	ErrContactRequired       = errors.New("invite contact required")
)

// IsNotFound reports whether err is one of the not-found kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrRoundNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrInvitationNotFound) ||
		errors.Is(err, ErrInviterNotFound)
}

// IsConflict reports whether err is one of the state-conflict kinds.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionAlreadyComplete) ||
		errors.Is(err, ErrRoundAlreadyActive) ||
		errors.Is(err, ErrRoundNotActive) ||
		errors.Is(err, ErrRoundAlreadyComplete) ||
		errors.Is(err, ErrInviteRequired)
}

// IsValidation reports whether err is a validation or capacity kind.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInsufficientQuestions) ||
		errors.Is(err, ErrNoRoundsConfigured) ||
		errors.Is(err, ErrContactRequired)
}
