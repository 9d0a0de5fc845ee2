package remote

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout reports that the caller's deadline or the configured
	// timeout expired before the transfer finished.
	ErrTimeout = errors.New("remote operation timed out")
	// ErrAuthRequired reports a 401 or 403 from the server.
	ErrAuthRequired = errors.New("authentication required")
	// ErrProtocol reports a malformed smart-protocol response.
	ErrProtocol = errors.New("protocol error")
	// ErrPushRejected reports that the server refused a pushed ref.
	ErrPushRejected = errors.New("push rejected")
	// ErrUnsupportedURL reports a remote URL that is not http(s).
	ErrUnsupportedURL = errors.New("only http and https remotes are supported")
)

// TransportError wraps every failure of a remote round trip with the URL
// and the operation that failed.
type TransportError struct {
	URL string
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a message the server sent on the error sideband channel
// or as an "ERR" pkt-line.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote: " + strings.TrimSpace(e.Message)
}
