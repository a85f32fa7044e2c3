package feed

import (
	"errors"
	"fmt"

	"github.com/clipdeck/kick-clips-go/internal/kick"
)

var (
	// ErrNoSession is returned by LoadNextPage before the first Reset.
	ErrNoSession = errors.New("no feed session: reset must be called first")

	// ErrStaleResponse is returned to a caller whose fetch completed after the
	// session it belonged to was replaced by Reset. The response is discarded.
	ErrStaleResponse = errors.New("response belongs to a superseded feed session")
)

// TransportError is the upstream failure type reported by the gateway.
type TransportError = kick.TransportError

// ExhaustedError reports that the feed stopped requesting pages after too many
// consecutive failures. Last is the failure that crossed the threshold.
type ExhaustedError struct {
	Last     error
	Failures int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("feed exhausted after %d consecutive failures: %v", e.Failures, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsExhausted reports whether err is or wraps an *ExhaustedError.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}
