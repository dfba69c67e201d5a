package connector

import "errors"

var (
	// ErrNotFound is returned when a ledger lookup matches zero records.
	// Callers decide whether that is fatal; it is never a silent nil.
	ErrNotFound = errors.New("ledger record not found")

	// ErrAuthorizationInvalid is returned when no unexpired access token is
	// available and the read path refuses to refresh inline.
	ErrAuthorizationInvalid = errors.New("intuit authorization invalid; manual authorization required")

	// ErrRefreshTokenExpired is returned when a token refresh is requested
	// but the refresh token itself has lapsed.
	ErrRefreshTokenExpired = errors.New("intuit refresh token expired")

	// ErrDuplicateJob is returned when an event id has already been enqueued.
	ErrDuplicateJob = errors.New("duplicate billing event already enqueued")

	// ErrDeleteUnsupported is returned when a physical delete is requested
	// for a ledger entity type that only supports deactivation.
	ErrDeleteUnsupported = errors.New("ledger entity type does not support deletion")

	// ErrUnmappedEntity is returned when an adapter cannot resolve a related
	// ledger entity (for example an invoice line whose plan has no Item).
	ErrUnmappedEntity = errors.New("related ledger entity not mapped")
)
