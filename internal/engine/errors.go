package engine

import "fmt"

// engineUnavailableError signals that no model is loaded (or the tier has no
// such capability, as with Embed on the llama engine).
type engineUnavailableError struct{}

func (engineUnavailableError) Error() string { return "engine unavailable" }

// ErrEngineUnavailable constructs an engineUnavailableError.
func ErrEngineUnavailable() error { return engineUnavailableError{} }

// IsEngineUnavailable reports whether err indicates a missing engine.
func IsEngineUnavailable(err error) bool {
	_, ok := err.(engineUnavailableError)
	return ok
}

// noCategoriesError signals Classify was called with an empty category list.
type noCategoriesError struct{}

func (noCategoriesError) Error() string { return "no categories provided" }

func ErrNoCategories() error { return noCategoriesError{} }

// IsNoCategories reports whether err indicates an empty category list.
func IsNoCategories(err error) bool {
	_, ok := err.(noCategoriesError)
	return ok
}

// classificationFailedError carries the raw model output that matched none
// of the offered categories. Callers must not fall back to the first
// category; that would bias every unparseable response the same way.
type classificationFailedError struct{ raw string }

func (e classificationFailedError) Error() string {
	return fmt.Sprintf("classification failed: no category in %q", e.raw)
}

func ErrClassificationFailed(raw string) error { return classificationFailedError{raw: raw} }

// IsClassificationFailed reports whether err is an unparseable classification.
func IsClassificationFailed(err error) bool {
	_, ok := err.(classificationFailedError)
	return ok
}

// ClassificationRaw returns the raw model response behind a
// classification failure.
func ClassificationRaw(err error) (string, bool) {
	e, ok := err.(classificationFailedError)
	return e.raw, ok
}

// modelNotFoundError signals the model file is absent at the given path.
type modelNotFoundError struct{ path string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.path }

func ErrModelNotFound(path string) error { return modelNotFoundError{path: path} }

// IsModelNotFound reports whether err indicates a missing model file.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// modelLoadFailedError signals the native runtime refused the model file.
type modelLoadFailedError struct {
	path   string
	detail string
}

func (e modelLoadFailedError) Error() string {
	return fmt.Sprintf("model load failed for %s: %s", e.path, e.detail)
}

func ErrModelLoadFailed(path, detail string) error {
	return modelLoadFailedError{path: path, detail: detail}
}

func IsModelLoadFailed(err error) bool {
	_, ok := err.(modelLoadFailedError)
	return ok
}

// contextCreationFailedError signals the inference context could not be
// built for an otherwise loadable model.
type contextCreationFailedError struct{}

func (contextCreationFailedError) Error() string { return "context creation failed" }

func ErrContextCreationFailed() error { return contextCreationFailedError{} }

func IsContextCreationFailed(err error) bool {
	_, ok := err.(contextCreationFailedError)
	return ok
}

// tokenizationFailedError signals the prompt produced no tokens or exceeded
// the context window. Generate absorbs it; it surfaces only in logs.
type tokenizationFailedError struct{ reason string }

func (e tokenizationFailedError) Error() string { return "tokenization failed: " + e.reason }

func ErrTokenizationFailed(reason string) error { return tokenizationFailedError{reason: reason} }

func IsTokenizationFailed(err error) bool {
	_, ok := err.(tokenizationFailedError)
	return ok
}

// decodeFailedError carries the nonzero return code of a decode call.
type decodeFailedError struct{ code int }

func (e decodeFailedError) Error() string { return fmt.Sprintf("decode failed: code %d", e.code) }

func ErrDecodeFailed(code int) error { return decodeFailedError{code: code} }

func IsDecodeFailed(err error) bool {
	_, ok := err.(decodeFailedError)
	return ok
}

// DecodeCode returns the native return code behind a decode failure.
func DecodeCode(err error) (int, bool) {
	e, ok := err.(decodeFailedError)
	return e.code, ok
}
