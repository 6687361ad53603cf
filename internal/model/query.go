package model

import "time"

// Feedback is the visitor-supplied thumbs up/down signal on a query log.
type Feedback string

const (
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// Citation is one retrieved chunk attributed in an answer.
type Citation struct {
	ChunkID string  `json:"chunk_id"`
	Heading *string `json:"heading,omitempty"`
	Score   float64 `json:"score"`

	// Populated only when the caller requested include_metadata.
	SourceType   *SourceType `json:"source_type,omitempty"`
	OriginalURL  *string     `json:"original_url,omitempty"`
	CanonicalURL *string     `json:"canonical_url,omitempty"`
	StoragePath  *string     `json:"storage_path,omitempty"`
	Filename     *string     `json:"filename,omitempty"`
}

// QueryLog records one RAG query end-to-end for analytics and retention.
type QueryLog struct {
	ID               string     `json:"id"`
	BotID            string     `json:"bot_id"`
	SessionID        string     `json:"session_id"`
	QueryText        string     `json:"query_text"`
	PageURL          *string    `json:"page_url,omitempty"`
	ReturnedSources  []Citation `json:"returned_sources"`
	ResponseSummary  string     `json:"response_summary"`
	TokensUsed       int        `json:"tokens_used"`
	PromptTokens     *int       `json:"prompt_tokens,omitempty"`
	CompletionTokens *int       `json:"completion_tokens,omitempty"`
	Confidence       *float64   `json:"confidence,omitempty"`
	LatencyMS        int64      `json:"latency_ms"`
	UserFeedback     *Feedback  `json:"user_feedback,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
