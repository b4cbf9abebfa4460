package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")

	ErrUploadMissing       = errors.New("upload missing")
	ErrUploadTooLarge      = errors.New("upload too large")
	ErrInvalidFileType     = errors.New("invalid file type")
	ErrVerifierUnreachable = errors.New("verifier unreachable")
	ErrBadBackendResponse  = errors.New("bad backend response")
	ErrRateLimited         = errors.New("rate limited")
	ErrAuthFailed          = errors.New("auth failed")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrSessionExpired      = errors.New("session expired")
	ErrOrderNotFound       = errors.New("order not found")
)
