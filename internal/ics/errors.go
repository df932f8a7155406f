package ics

import "fmt"

// FetchError reports that the feed could not be retrieved: bad URL,
// transport failure, non-2xx status, or an unusable body.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Failed to fetch iCalendar feed, reason: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a feed that could not be turned into items: malformed
// calendar text, malformed date values, or timezone resolution failures.
// The underlying cause is always part of the message.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "Failed to parse iCalendar: " + e.Reason
	}
	return fmt.Sprintf("Failed to parse iCalendar: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrorf(err error, format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...), Err: err}
}
