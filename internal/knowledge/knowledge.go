// Package knowledge manages the document side of retrieval: ingesting
// uploaded files into embedded text chunks and searching them by vector
// similarity. Visibility is enforced in the store queries, never by
// post-filtering.
package knowledge

import "errors"

// Chunking parameters for ingested documents.
const (
	chunkSize    = 300
	chunkOverlap = 30
)

// DefaultMaxDocuments is the per-user upload cap. A negative cap disables
// the limit.
const DefaultMaxDocuments = 5

// Sentinel errors for knowledge operations. Check with errors.Is().
var (
	// ErrStore indicates the underlying database is unavailable or failed.
	ErrStore = errors.New("knowledge store error")

	// ErrDocumentNotFound indicates the requested document does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNotOwner indicates the requester does not own the document.
	ErrNotOwner = errors.New("not the document owner")

	// ErrDocumentLimit indicates the user reached the upload cap.
	ErrDocumentLimit = errors.New("document limit reached")

	// ErrUnsupportedFormat indicates the file type cannot be ingested.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument indicates no text could be extracted from the file.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)
