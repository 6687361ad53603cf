package service

import "testing"

func TestTokenizer_CountTokens_Deterministic(t *testing.T) {
	tok := NewTokenizer()
	text := "Alpha Beta Gamma Delta Epsilon"

	a := tok.CountTokens(text, "gpt-4o-mini")
	b := tok.CountTokens(text, "gpt-4o-mini")
	if a != b {
		t.Fatalf("CountTokens not deterministic: %d != %d", a, b)
	}
	if a <= 0 {
		t.Fatalf("CountTokens() = %d, want > 0", a)
	}
}

func TestTokenizer_CountTokens_Empty(t *testing.T) {
	tok := NewTokenizer()
	if got := tok.CountTokens("", "gpt-4o-mini"); got != 0 {
		t.Errorf("CountTokens(empty) = %d, want 0", got)
	}
	if got := tok.CountTokens("   ", "gpt-4o-mini"); got != 0 {
		t.Errorf("CountTokens(whitespace) = %d, want 0", got)
	}
}

func TestTokenizer_CountTokens_StableAcrossModels(t *testing.T) {
	tok := NewTokenizer()
	text := "The quick brown fox jumps over the lazy dog."

	openai := tok.CountTokens(text, "gpt-4o-mini")
	gemini := tok.CountTokens(text, "gemini-2.0-flash")
	if openai != gemini {
		t.Errorf("estimate should not depend on model family: openai=%d gemini=%d", openai, gemini)
	}
}
