package model

import "time"

// RateCounter is a per-bot, per-minute request counter. It is the sole
// coordination point under contention for rate limiting and MUST be
// incremented with a single round-trip conditional update.
type RateCounter struct {
	BotID       string    `json:"bot_id"`
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
}
