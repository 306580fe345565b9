package auth

import "errors"

var (
	// ErrTenantMismatch indicates a resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrLocationForbidden indicates the requester asked for a location
	// outside their granted scope. Surfaced distinctly so callers can tell
	// "not allowed" from "no data".
	ErrLocationForbidden = errors.New("location not in granted scope")
)
