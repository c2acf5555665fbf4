package certificate

import "errors"

var (
	// ErrNilState indicates the engine has no state backend configured.
	ErrNilState = errors.New("certificate: state not configured")
	// ErrNotAuthorized indicates the caller lacks the required role.
	ErrNotAuthorized = errors.New("certificate: caller not authorized")
	// ErrScoreTooLow indicates the submitted score is below the passing bar.
	ErrScoreTooLow = errors.New("certificate: score below passing threshold")
	// ErrAlreadyIssued indicates the student already holds a certificate for
	// the course.
	ErrAlreadyIssued = errors.New("certificate: already issued for course")
	// ErrNotFound indicates no certificate exists for the queried token ID.
	ErrNotFound = errors.New("certificate: not found")
)
