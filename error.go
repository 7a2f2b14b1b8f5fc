package urlkeep

import (
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECONFLICT    = "conflict"
	ECOLLISION   = "collision"
	EEXTRACT     = "extract"
	EFETCH       = "fetch"
	EINTERNAL    = "internal"
	EINVALID     = "invalid"
	ENOTFOUND    = "not_found"
	EUNSUPPORTED = "unsupported"
)

// Error represents an application-specific error. Code identifies the class
// of failure; Message is safe to show to an end user.
type Error struct {
	Code    string
	Message string

	// Err is the underlying cause, if any. It is never shown to users.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("urlkeep error: code=%s message=%s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("urlkeep error: code=%s message=%s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf is a helper function to return an Error with a given code and
// formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError returns an Error with a given code and message that keeps err as
// its cause.
func WrapError(code string, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// DuplicateURLError reports that a record for the canonical URL already exists.
type DuplicateURLError struct {
	CanonicalURL string
	Existing     *Record
}

func (e *DuplicateURLError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("URL %s already imported as %q", e.CanonicalURL, e.Existing.Title)
	}
	return fmt.Sprintf("URL %s already imported", e.CanonicalURL)
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var dup *DuplicateURLError
	if errors.As(err, &dup) {
		return ECONFLICT
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var dup *DuplicateURLError
	if errors.As(err, &dup) {
		return dup.Error()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}
