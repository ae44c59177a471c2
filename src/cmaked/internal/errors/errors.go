package errors

import (
	stderr "errors"
	"fmt"
)

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

var (
	// ErrConnectionLost reports that the connection to the cmake server was
	// torn down while requests were outstanding. Every request pending on
	// that connection resolves with this error, and any request issued
	// afterwards fails immediately until a new client is started.
	ErrConnectionLost = New("connection to cmake server lost")

	// ErrClientNotRunning reports that an operation requiring a live cmake
	// server client was issued while none was running.
	ErrClientNotRunning = New("cmake server client is not running")

	// ErrNoGenerator reports that a kit or preset change left the driver
	// without a resolvable generator.
	ErrNoGenerator = New("no usable generator could be resolved")

	// ErrDriverClosed reports that the driver's task queue has been shut
	// down and no further operations will be accepted.
	ErrDriverClosed = New("driver has been closed")
)

// StartupError reports that the cmake server process could not be brought to
// a usable state. Stage names the phase that failed (for example "spawn" or
// "handshake").
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("starting cmake server: %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ServerError carries a structured error reply from the cmake server. The
// driver recovers from these during configure; other request contexts treat
// them as fatal.
type ServerError struct {
	Method  string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("cmake server rejected %q: %s", e.Method, e.Message)
}

// UnknownEntryTypeError reports a cache entry whose type tag is outside the
// known set. The entry is dropped from the cache model and the rest of the
// cache remains usable.
type UnknownEntryTypeError struct {
	Key     string
	RawType string
}

func (e *UnknownEntryTypeError) Error() string {
	return fmt.Sprintf("cache entry %q has unknown type %q", e.Key, e.RawType)
}
