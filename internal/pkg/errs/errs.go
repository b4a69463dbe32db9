package errs

import "errors"

// Pipeline failure kinds. Callers classify with errors.Is; every failure
// surfaced by the core wraps exactly one of these.
var (
	ErrChunking         = errors.New("chunking failed")
	ErrEmbedding        = errors.New("embedding failed")
	ErrIndexUnavailable = errors.New("vector index unavailable")
	ErrIndexWrite       = errors.New("vector index write failed")
	ErrRetrieval        = errors.New("retrieval failed")
	ErrGeneration       = errors.New("generation failed")
	ErrQueryProcessing  = errors.New("query processing failed")

	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
