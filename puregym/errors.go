package puregym

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means the session is missing or expired and a
	// re-login did not help.
	ErrAuthentication = errors.New("puregym: authentication failed")
	// ErrRejected means the portal answered but refused the request,
	// e.g. the class is full or too close to start to unbook.
	ErrRejected = errors.New("puregym: request rejected")
)

// RemoteError is a transport level failure: network, timeout, unexpected
// status or an undecodable body. It is worth retrying on the next cycle.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("puregym %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("puregym %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
