package download

import "fmt"

// modelNotFoundError signals a requested id absent from the catalog.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether err indicates an unknown catalog id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// downloadFailedError carries the transport or HTTP cause of a failed
// download.
type downloadFailedError struct{ cause string }

func (e downloadFailedError) Error() string { return "download failed: " + e.cause }

func ErrDownloadFailed(cause string) error { return downloadFailedError{cause: cause} }

// ErrDownloadStatus builds a downloadFailedError from an HTTP status code.
func ErrDownloadStatus(code int) error {
	return downloadFailedError{cause: fmt.Sprintf("http status %d", code)}
}

func IsDownloadFailed(err error) bool {
	_, ok := err.(downloadFailedError)
	return ok
}

// downloadCancelledError signals a caller-requested cancellation; partial
// bytes stay in the sidecar for a later resume.
type downloadCancelledError struct{}

func (downloadCancelledError) Error() string { return "download cancelled" }

func ErrDownloadCancelled() error { return downloadCancelledError{} }

func IsDownloadCancelled(err error) bool {
	_, ok := err.(downloadCancelledError)
	return ok
}

// integrityCheckFailedError carries the expected and computed digests of a
// corrupt file. The file is already deleted when this error is returned.
type integrityCheckFailedError struct{ expected, actual string }

func (e integrityCheckFailedError) Error() string {
	return fmt.Sprintf("integrity check failed: expected %s got %s", e.expected, e.actual)
}

func ErrIntegrityCheckFailed(expected, actual string) error {
	return integrityCheckFailedError{expected: expected, actual: actual}
}

func IsIntegrityCheckFailed(err error) bool {
	_, ok := err.(integrityCheckFailedError)
	return ok
}

// IntegrityDigests returns the expected and computed digests behind an
// integrity failure.
func IntegrityDigests(err error) (expected, actual string, ok bool) {
	e, isIt := err.(integrityCheckFailedError)
	return e.expected, e.actual, isIt
}
