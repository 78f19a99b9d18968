package claims

import "errors"

var (
	// ErrServiceUnavailable marks an embedding or LLM call that failed after
	// bounded retries. Batch processing degrades the affected question to a
	// review decision instead of propagating this to the caller.
	ErrServiceUnavailable = errors.New("external service unavailable")

	// ErrSchemaValidation marks an LLM reply that did not match the expected
	// JSON shape. The engine fails closed to a review decision on it.
	ErrSchemaValidation = errors.New("response schema validation failed")

	// ErrExtraction marks a per-file text extraction failure. The loader
	// skips the file and keeps going.
	ErrExtraction = errors.New("document extraction failed")

	// ErrNotReady is returned for query traffic before the index build has
	// completed.
	ErrNotReady = errors.New("similarity index not built")
)
