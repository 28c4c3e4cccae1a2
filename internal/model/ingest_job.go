package model

// IngestJob is the queue payload for asynchronous ingestion.
type IngestJob struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}
