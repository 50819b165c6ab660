package session

import "errors"

var (
	// ErrBusy is returned when a link or verification check is already in flight.
	ErrBusy = errors.New("another link or verification is in progress")
	// ErrNotAdmin is returned by operations that need a verified, selected bot.
	ErrNotAdmin = errors.New("no verified bot selected")
	// ErrClosed is returned once the controller has been closed or unloaded.
	ErrClosed = errors.New("session closed")
	// ErrEmptyToken is returned when Link is called without a token.
	ErrEmptyToken = errors.New("bot token is empty")

	// errStaleResponse marks a result superseded by a newer request. Logged, never returned.
	errStaleResponse = errors.New("stale response discarded")
)
