package model

import "time"

// CharRange is the inclusive-start/exclusive-end span of a chunk within its
// source's extracted text, including any prepended overlap tail.
type CharRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunk is a bounded span of text derived from a source, with a dense vector
// embedding once indexing completes.
type Chunk struct {
	ID             string     `json:"id"`
	SourceID       string     `json:"source_id"`
	BotID          string     `json:"bot_id"`
	ChunkIndex     int        `json:"chunk_index"`
	Excerpt        string     `json:"excerpt"`
	Heading        *string    `json:"heading,omitempty"`
	PublishDate    *time.Time `json:"publish_date,omitempty"`
	CharRange      CharRange  `json:"char_range"`
	TokensEstimate int        `json:"tokens_estimate"`
	Embedding      []float32  `json:"embedding,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
