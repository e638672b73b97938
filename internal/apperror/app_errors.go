package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrIllegalMove      = errors.New("illegal move")
	ErrUnknownGame      = errors.New("unknown game")
	ErrNotInSession     = errors.New("player is not part of the session")
	ErrInvalidStatus    = errors.New("invalid session status")

	ErrStaleWrite        = errors.New("session was modified by another writer")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExists     = errors.New("session already exists")
	ErrControllerStopped = errors.New("session controller is stopped")

	ErrInviteNotFound   = errors.New("invite not found")
	ErrInviteNotPending = errors.New("invite is no longer pending")
	ErrSelfInvite       = errors.New("cannot invite yourself")
	ErrEmptyPlayer      = errors.New("player id is empty")
)
