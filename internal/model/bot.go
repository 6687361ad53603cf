// Package model defines the persisted entities of the system: bots, their
// sources and chunks, query logs, widget tokens, and rate counters.
package model

import "time"

// LLMProvider identifies which vendor a bot's chat/embedding calls route to.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig is the explicit, enumerated shape of a bot's generation settings.
// Any field not listed here is ignored rather than stored; future fields are
// added with backward-compatible defaults, never by changing this shape at
// runtime.
type LLMConfig struct {
	ModelName   string  `json:"model_name"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Bot is a configured assistant scoped to one owner, with its own knowledge
// base and LLM settings.
type Bot struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"owner_id"`
	Name            string      `json:"name"`
	Description     *string     `json:"description,omitempty"`
	SystemPrompt    string      `json:"system_prompt"`
	LLMProvider     LLMProvider `json:"llm_provider"`
	LLMConfig       LLMConfig   `json:"llm_config"`
	RetentionDays   int         `json:"retention_days"`
	RateLimitPerMin int         `json:"rate_limit_per_minute"`
	TopK            int         `json:"top_k"`
	MinScore        float64     `json:"min_score"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
