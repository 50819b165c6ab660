package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// ErrInvalidCredential is returned by Link when the service rejects the bot token (HTTP 401).
var ErrInvalidCredential = errors.New("invalid bot credential")

// RequestError is a non-2xx answer from the service.
type RequestError struct {
	Op     string
	Status int
	Detail string // server-supplied detail, may be empty
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
}

// TransportError wraps network failures and undecodable responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// IsRevoked reports whether err means the binding no longer exists server-side.
func IsRevoked(err error) bool {
	var re *RequestError
	if !errors.As(err, &re) {
		return false
	}
	return re.Status == http.StatusNotFound || re.Status == http.StatusGone
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// UserMessage turns any error from this package into the single line shown to
// the operator. Raw payloads are never exposed except the server detail text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInvalidCredential) {
		return "The bot token was rejected. Copy it again from BotFather and retry."
	}

	var re *RequestError
	if errors.As(err, &re) {
		switch {
		case re.Detail != "":
			return re.Detail
		case re.Status == http.StatusTooManyRequests:
			return "Too many requests. Please try again later."
		case re.Status == http.StatusNotFound || re.Status == http.StatusGone:
			return "This bot is no longer linked to your account."
		case re.Status == http.StatusForbidden:
			return "You are not allowed to perform this action."
		case re.Status >= 500:
			return "The service is temporarily unavailable. Please try again in a moment."
		default:
			return fmt.Sprintf("Request failed (HTTP %d).", re.Status)
		}
	}

	var te *TransportError
	if errors.As(err, &te) {
		lower := strings.ToLower(te.Err.Error())
		if containsAny(lower, "timeout", "timed out", "deadline exceeded") {
			return "The request timed out. Please try again."
		}
		return "Could not reach the service. Check your connection and try again."
	}

	slog.Warn("unclassified remote error", "error", err)
	return "Something went wrong. Please try again."
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
