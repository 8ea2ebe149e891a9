package headhunter

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth matches every *AuthError.
	ErrAuth = errors.New("headhunter: authorization failed")
	// ErrResumeUpdate matches every *ResumeUpdateError.
	ErrResumeUpdate = errors.New("headhunter: resume can not be published")
)

// AuthError means the token is invalid, revoked or lacks the scope for the call.
// The user has to authorize again.
type AuthError struct {
	Endpoint string
	Status   int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("headhunter: authorization failed for %s: status %d", e.Endpoint, e.Status)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// ResumeUpdateError is returned when the API refuses to publish a resume:
// required fields are missing, the resume is blocked or is being moderated.
type ResumeUpdateError struct {
	ResumeID    string
	Status      int
	Description string
}

func (e *ResumeUpdateError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("headhunter: resume %s can not be published: status %d", e.ResumeID, e.Status)
	}
	return fmt.Sprintf("headhunter: resume %s can not be published: status %d: %s", e.ResumeID, e.Status, e.Description)
}

func (e *ResumeUpdateError) Is(target error) bool {
	return target == ErrResumeUpdate
}

// StatusError is an unexpected response. Callers treat it as transient.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("headhunter: unexpected status %d from %s", e.Status, e.Endpoint)
}
