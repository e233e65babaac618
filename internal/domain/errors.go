package domain

import "errors"

var (
	// ErrNotFound is returned when a candidate, draft, post or site is missing.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a draft already exists for a candidate.
	ErrAlreadyExists = errors.New("already exists")
	// ErrSlugConflict is returned when the slug is taken within the site.
	ErrSlugConflict = errors.New("slug already exists for site")
	// ErrAlreadyApproved is returned when approving an approved draft.
	ErrAlreadyApproved = errors.New("draft already approved")
	// ErrVersionConflict is returned when a draft changed since it was read.
	ErrVersionConflict = errors.New("draft was modified concurrently")
	// ErrInvalidTransition is returned for a step the draft's state forbids.
	ErrInvalidTransition = errors.New("invalid stage transition")
	// ErrDraftLocked is returned when another invocation holds the draft.
	ErrDraftLocked = errors.New("draft is being processed")
	// ErrUnauthorized is returned for missing or wrong credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
