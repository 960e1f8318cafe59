package fetch

import (
	"errors"
	"fmt"
)

// ErrBadStatus marks a response outside the 2xx/3xx range
var ErrBadStatus = errors.New("bad response status")

// FetchError describes a failed request. Timeouts wrap context.DeadlineExceeded.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
