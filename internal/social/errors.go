package social

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited matches every *RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrTooManyIDs is returned when a lookup exceeds MaxLookupBatch ids.
	ErrTooManyIDs = errors.New("too many ids in one request")
)

// RateLimitError is returned when the API rejects a request until ResetAt.
type RateLimitError struct {
	Endpoint string
	ResetAt  time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited until %s", e.Endpoint, e.ResetAt.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RemoteError is a non-success response other than a rate limit.
type RemoteError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.Status, e.Body)
}
