package export

import (
	"fmt"
	"time"
)

// RequestError is a hard export failure: the sink returned a non-200 status
// or a body status other than "success". It carries the batch window as
// diagnostic context and always stops the run without advancing the
// bookmark.
type RequestError struct {
	// StatusCode is the HTTP status of the failed request, or 0 when the
	// request itself failed (timeout, connection error).
	StatusCode int
	// BodyStatus is the status string reported by the sink, if any.
	BodyStatus string
	// Begin and End are the first and last event timestamps of the failed
	// batch.
	Begin time.Time
	End   time.Time

	Err error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("export request failed for events %s..%s",
		e.Begin.Format(time.RFC3339), e.End.Format(time.RFC3339))
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: status %d, body status %q", msg, e.StatusCode, e.BodyStatus)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
