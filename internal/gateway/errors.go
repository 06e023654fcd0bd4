package gateway

import "errors"

var (
	// ErrOffline indicates the connectivity probe reported no connectivity,
	// so the network call was not attempted at all.
	ErrOffline = errors.New("no connectivity available")

	// ErrTransient indicates a recoverable transport failure (timeout,
	// connection reset, 502/503/504). The operation can be retried on a
	// later sync cycle.
	ErrTransient = errors.New("transient transport failure")

	// ErrRejected indicates the server understood and refused the request.
	// Not retryable; the caller must surface it.
	ErrRejected = errors.New("request rejected by server")

	// ErrConflict indicates the server's version of the resource changed
	// since the local snapshot was taken (HTTP 409).
	ErrConflict = errors.New("remote version conflict")

	// ErrNotFound indicates the requested resource does not exist remotely.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the bearer token was missing or rejected.
	ErrUnauthorized = errors.New("client unauthorized")

	// ErrServer indicates a 5xx response. 502/503/504 are additionally
	// transient; other 5xx are rejections.
	ErrServer = errors.New("server-side failure")
)

// IsTransient reports whether err represents a connectivity problem that is
// expected to clear on its own: being offline or a transient transport
// failure. Such errors leave queued mutations pending for the next cycle.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrOffline)
}
