package model

// Document is the catalog record for one ingested source unit. Content is not
// kept here; chunks carry it into the vector index.
type Document struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	SourcePath  string            `json:"source_path"`
	Metadata    map[string]string `json:"metadata"`
	ContentHash string            `json:"content_hash"`
	ChunkCount  int               `json:"chunk_count"`
	Ctime       int64             `json:"ctime"`
	Mtime       int64             `json:"mtime"`
}

// IngestReport is returned by document ingestion.
type IngestReport struct {
	DocumentID      string `json:"document_id"`
	ChunksProcessed int    `json:"chunks_processed"`
	Status          string `json:"status"`
}
