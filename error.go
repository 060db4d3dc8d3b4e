package livestack

import (
	"fmt"
)

// SessionError is returned when a session transition fails. The session
// stays in its prior state.
type SessionError struct {
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the cause of session error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// CriticalFolderMissingError is returned by cold start when the scan or
// work folder doesn't exist. It's a SessionError without cause, Title and
// Message are meant to be shown to the user.
type CriticalFolderMissingError struct {
	SessionError
	Title string
	// Role is either "scan" or "work".
	Role string
	Path string
}

func (e *CriticalFolderMissingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Message)
}

// Unwrap returns the embedded session error.
func (e *CriticalFolderMissingError) Unwrap() error {
	return &e.SessionError
}

// folderMissing creates missing folder error for the role.
func folderMissing(role, path string) *CriticalFolderMissingError {
	return &CriticalFolderMissingError{
		SessionError: SessionError{
			Message: fmt.Sprintf("Your currently configured %s folder '%s' is missing.", role, path),
		},
		Title: "Missing critical folder",
		Role:  role,
		Path:  path,
	}
}
