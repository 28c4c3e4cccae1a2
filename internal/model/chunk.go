package model

// ChunkMeta is the fixed metadata attached to every indexed chunk.
type ChunkMeta struct {
	FileID string `json:"file_id"`
	Page   int    `json:"page"`
}

// Chunk is a bounded slice of one page's text. Page is 1-indexed.
type Chunk struct {
	Text string `json:"text"`
	ChunkMeta
}

// ScoredChunk is a query hit in similarity rank order.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}
