package portal

import "fmt"

// AuthError is returned when the portal rejects the session token or the
// login form. It is fatal for the case file that owns the session.
type AuthError struct {
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// NavigationError represents a page load or element wait that did not
// complete. It is scoped to the page or row being processed.
type NavigationError struct {
	Step  string
	Cause error
}

func (e *NavigationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("navigation error at %s: %v", e.Step, e.Cause)
	}
	return fmt.Sprintf("navigation error at %s", e.Step)
}

func (e *NavigationError) Unwrap() error {
	return e.Cause
}

// DownloadError reports a row artifact that the browser failed to deliver.
type DownloadError struct {
	Row    int
	Reason string
	Cause  error
}

func (e *DownloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("download of row %d failed: %s: %v", e.Row, e.Reason, e.Cause)
	}
	return fmt.Sprintf("download of row %d failed: %s", e.Row, e.Reason)
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}
