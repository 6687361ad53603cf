package model

import "time"

// SourceType identifies the kind of content a Source was ingested from.
type SourceType string

const (
	SourceTypePDF  SourceType = "pdf"
	SourceTypeDOCX SourceType = "docx"
	SourceTypeHTML SourceType = "html"
	SourceTypeText SourceType = "text"
)

// SourceStatus tracks a Source through the ingestion state machine.
type SourceStatus string

const (
	SourceStatusUploaded SourceStatus = "uploaded"
	SourceStatusParsing  SourceStatus = "parsing"
	SourceStatusIndexed  SourceStatus = "indexed"
	SourceStatusFailed   SourceStatus = "failed"
)

// Source is one ingested unit (a file or a URL) contributing content to a bot.
type Source struct {
	ID            string       `json:"id"`
	BotID         string       `json:"bot_id"`
	SourceType    SourceType   `json:"source_type"`
	OriginalURL   *string      `json:"original_url,omitempty"`
	CanonicalURL  *string      `json:"canonical_url,omitempty"`
	StoragePath   string       `json:"storage_path"`
	Filename      *string      `json:"filename,omitempty"`
	Status        SourceStatus `json:"status"`
	ErrorMessage  *string      `json:"error_message,omitempty"`
	ETag          *string      `json:"etag,omitempty"`
	LastModified  *string      `json:"last_modified,omitempty"`
	PageChecksum  *string      `json:"page_checksum,omitempty"`
	FileSize      *int64       `json:"file_size,omitempty"`
	MimeType      *string      `json:"mime_type,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// IsURLBased reports whether this source type is ingested by URL rather than
// by uploaded bytes, enforcing the invariant that source_type=html iff
// original_url is present.
func (s SourceType) IsURLBased() bool {
	return s == SourceTypeHTML
}
