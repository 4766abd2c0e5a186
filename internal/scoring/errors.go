package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest rejects malformed scoring requests: exactly one of the
// session id or the transcript must be supplied.
var ErrInvalidRequest = errors.New("exactly one of sessionId or transcript must be provided")

// UpstreamFetchError reports a failed call-data API fetch, carrying the
// upstream status and message through to the caller.
type UpstreamFetchError struct {
	Status  int
	Message string
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("call API returned status %d: %s", e.Status, e.Message)
}

// UpstreamModelError reports a failed or empty completion API response
type UpstreamModelError struct {
	Message string
	Err     error
}

func (e *UpstreamModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion API error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("completion API error: %s", e.Message)
}

func (e *UpstreamModelError) Unwrap() error { return e.Err }
