package service

import (
	"regexp"
	"strings"

	"github.com/singlebitxyz/gulp/internal/model"
)

// abbreviations that must not be treated as sentence terminators even though
// they end in a period (Mr. Smith, U.S. policy, etc.).
var sentenceAbbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sen": true,
	"rep": true, "gen": true, "st": true, "jr": true, "sr": true, "co": true,
	"corp": true, "inc": true, "ltd": true, "vs": true, "etc": true, "e.g": true,
	"i.e": true, "no": true, "vol": true, "pp": true, "fig": true, "approx": true,
	"u.s": true, "u.k": true,
}

var (
	markdownHeadingRe = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	wordCharsRe       = regexp.MustCompile(`[A-Za-z]`)
)

// ChunkerConfig holds the size/overlap parameters for C4, sourced from
// process configuration (spec §6 names no per-bot override for these).
type ChunkerConfig struct {
	TargetTokens  int
	MinTokens     int
	MaxTokens     int
	OverlapTokens int
}

// Chunker splits extracted text into sentence-aware, overlapping chunks.
type Chunker struct {
	cfg ChunkerConfig
	tok *Tokenizer
}

// NewChunker creates a Chunker.
func NewChunker(cfg ChunkerConfig, tok *Tokenizer) *Chunker {
	return &Chunker{cfg: cfg, tok: tok}
}

type sentenceSpan struct {
	start, end int
	tokens     int
}

// Chunk implements the C4 contract: target size 800 tokens (configurable),
// hard minimum/maximum, overlap between consecutive chunks, heading
// extraction, and char_range tracking. sourceTitle and urlLastSegment feed
// the heading fallback chain; modelName is passed through to the tokenizer.
func (c *Chunker) Chunk(text, sourceTitle, urlLastSegment, modelName string) []model.Chunk {
	sentences := splitSentences(text, c.tok, modelName)
	if len(sentences) == 0 {
		return nil
	}

	var groups [][]sentenceSpan
	var current []sentenceSpan
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			currentTokens = 0
		}
	}

	for _, s := range sentences {
		if len(current) == 0 {
			current = append(current, s)
			currentTokens = s.tokens
			// A single sentence exceeding the hard maximum is emitted as its
			// own chunk; it is never split mid-sentence.
			if currentTokens > c.cfg.MaxTokens {
				flush()
			}
			continue
		}

		if currentTokens+s.tokens > c.cfg.MaxTokens {
			flush()
			current = append(current, s)
			currentTokens = s.tokens
			continue
		}

		current = append(current, s)
		currentTokens += s.tokens

		if currentTokens >= c.cfg.TargetTokens && currentTokens >= c.cfg.MinTokens {
			flush()
		}
	}
	flush()

	chunks := make([]model.Chunk, 0, len(groups))
	for i, g := range groups {
		start := g[0].start
		end := g[len(g)-1].end

		// Prepend the tail of the previous chunk sized to the overlap budget.
		if i > 0 {
			prev := groups[i-1]
			tailTokens := 0
			tailStart := prev[len(prev)-1].end
			for j := len(prev) - 1; j >= 0; j-- {
				if tailTokens >= c.cfg.OverlapTokens {
					break
				}
				tailStart = prev[j].start
				tailTokens += prev[j].tokens
			}
			start = tailStart
		}

		excerpt := strings.TrimSpace(text[start:end])
		tokensEstimate := c.tok.CountTokens(excerpt, modelName)
		heading := extractHeading(excerpt, sourceTitle, urlLastSegment)

		chunks = append(chunks, model.Chunk{
			ChunkIndex:     i,
			Excerpt:        excerpt,
			Heading:        heading,
			CharRange:      model.CharRange{Start: start, End: end},
			TokensEstimate: tokensEstimate,
		})
	}

	return chunks
}

// splitSentences splits text on sentence-terminal punctuation with
// abbreviation handling, returning byte-offset spans into text.
func splitSentences(text string, tok *Tokenizer, modelName string) []sentenceSpan {
	var spans []sentenceSpan

	start := 0
	n := len(text)
	for i := 0; i < n; i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		// Consume a run of terminal punctuation ("...", "?!").
		j := i
		for j < n && (text[j] == '.' || text[j] == '!' || text[j] == '?') {
			j++
		}
		// Require the terminator to be followed by whitespace or end of text.
		if j < n && text[j] != ' ' && text[j] != '\n' && text[j] != '\t' {
			i = j - 1
			continue
		}
		if ch == '.' && isAbbreviation(text[start:j]) {
			i = j - 1
			continue
		}

		span := sentenceSpan{start: start, end: j}
		trimmed := strings.TrimSpace(text[start:j])
		if trimmed != "" {
			span.tokens = tok.CountTokens(trimmed, modelName)
			spans = append(spans, span)
		}

		// Skip whitespace to the next sentence's start.
		for j < n && (text[j] == ' ' || text[j] == '\n' || text[j] == '\t') {
			j++
		}
		start = j
		i = j - 1
	}

	if strings.TrimSpace(text[start:]) != "" {
		trimmed := strings.TrimSpace(text[start:])
		spans = append(spans, sentenceSpan{
			start:  start,
			end:    len(text),
			tokens: tok.CountTokens(trimmed, modelName),
		})
	}

	return spans
}

// isAbbreviation reports whether the text immediately preceding a period
// ends in a known abbreviation, so the period should not split sentences.
func isAbbreviation(preceding string) bool {
	preceding = strings.TrimSpace(preceding)
	fields := strings.Fields(preceding)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(strings.TrimRight(fields[len(fields)-1], "."))
	return sentenceAbbreviations[last]
}

// extractHeading implements the fallback chain: markdown heading, ALL-CAPS
// short line, source title, URL last path segment, else none.
func extractHeading(excerpt, sourceTitle, urlLastSegment string) *string {
	lines := strings.Split(excerpt, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := markdownHeadingRe.FindStringSubmatch(line); m != nil {
			h := strings.TrimSpace(m[1])
			return &h
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if isAllCapsHeading(line) {
			return &line
		}
	}

	if sourceTitle != "" {
		return &sourceTitle
	}
	if urlLastSegment != "" {
		return &urlLastSegment
	}
	return nil
}

func isAllCapsHeading(line string) bool {
	if len(line) < 3 || len(line) > 80 {
		return false
	}
	if !wordCharsRe.MatchString(line) {
		return false
	}
	return line == strings.ToUpper(line) && line != strings.ToLower(line)
}
