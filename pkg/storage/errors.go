package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all backends. Operations wrap these with
// fmt.Errorf("...: %w", ...) so callers can classify with errors.Is while
// keeping the call-site context. Anything not covered here (permission
// denied, throttling, network failures) passes through from the backend SDK
// unclassified so callers can apply backend-specific handling.
var (
	// ErrUnsupportedOperation indicates a mode combination the backend does
	// not implement. Raised at Open, never mid-stream.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidPath indicates a path that violates the local filesystem
	// sandbox: disallowed characters, escape from the configured root, or a
	// non-regular filesystem entry. Always raised before any mutation.
	ErrInvalidPath = errors.New("invalid path")

	// ErrTokenMalformed indicates a link token that could not be decoded at
	// all. The link-view layer maps this to 404.
	ErrTokenMalformed = errors.New("malformed link token")

	// ErrSignatureInvalid indicates a link token whose signature does not
	// verify under this backend's name and secret. Maps to 403.
	ErrSignatureInvalid = errors.New("link token signature invalid")

	// ErrTokenExpired indicates a structurally valid, correctly signed token
	// presented after its expiry. Maps to 403.
	ErrTokenExpired = errors.New("link token expired")

	// ErrNotConfigured indicates a link operation was invoked without the
	// required secret key or linked endpoint configured.
	ErrNotConfigured = errors.New("link secret or endpoint not configured")
)

// FileNotFoundError indicates an object was absent at open, get or delete
// time, for backends whose native API distinguishes the case (S3 NoSuchKey,
// for example). Backends whose API does not report missing objects
// distinctly pass their transport error through instead.
type FileNotFoundError struct {
	Storage  string
	Filename string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file %s not found in %s", e.Filename, e.Storage)
}

// IsNotFound reports whether err wraps a FileNotFoundError.
func IsNotFound(err error) bool {
	var nf *FileNotFoundError
	return errors.As(err, &nf)
}
