package abhiyaan

import "errors"

var (
	// ErrAccessDenied is returned when a caller names a tenant outside
	// their resolved scope. Surfaced before any partition I/O.
	ErrAccessDenied = errors.New("abhiyaan: access denied")

	// ErrSourceRequired is returned by NewEngine without a partition source.
	ErrSourceRequired = errors.New("abhiyaan: partition source is required")

	// ErrBoothTenantMismatch is returned when a booth identifier decodes to
	// a different constituency than the one being written.
	ErrBoothTenantMismatch = errors.New("abhiyaan: booth belongs to another constituency")

	// ErrVoterNotFound is returned when a booth assignment names a voter
	// that is not on the roster.
	ErrVoterNotFound = errors.New("abhiyaan: voter not found")
)
