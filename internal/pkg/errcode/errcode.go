package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrInvalid
	ErrNotFound
	ErrChunking
	ErrEmbedding
	ErrIndexUnavailable
	ErrIndexWrite
	ErrRetrieval
	ErrGeneration
	ErrQueryProcessing
	ErrAIUnavailable
)
