package client

import "fmt"

// ErrResponseCount is returned when a server answers a batch with a different
// number of responses than there were requests.
type ErrResponseCount struct {
	Expected int
	Got      int
}

func (e ErrResponseCount) Error() string {
	return fmt.Sprintf("expected %d responses, received %d responses in batch", e.Expected, e.Got)
}
