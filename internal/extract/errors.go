package extract

import "fmt"

// DateParseError is returned for a row whose governing date cannot be read.
// The row is skipped and extraction continues.
type DateParseError struct {
	Text    string
	Message string
	Cause   error
}

func (e *DateParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("date parse error: %s in %q: %v", e.Message, e.Text, e.Cause)
	}
	return fmt.Sprintf("date parse error: %s in %q", e.Message, e.Text)
}

func (e *DateParseError) Unwrap() error {
	return e.Cause
}
