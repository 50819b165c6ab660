package roster

import "errors"

var (
	// ErrNoBot is returned when no bot has been handed to the synchronizer.
	ErrNoBot = errors.New("no bot selected")
	// ErrOwnerRow is returned for mutations of the owner's own row.
	ErrOwnerRow = errors.New("the owner's row cannot be changed")
	// ErrRowNotFound is returned when the row is not in the current view.
	ErrRowNotFound = errors.New("row not in the current view")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("roster closed")

	errStaleResponse = errors.New("stale response discarded")
)
