package textproc

import (
	"strings"
	"unicode"
)

// Token is a single token produced by the preprocessing pipeline.
// Only the surface string is needed by the slot layer; richer annotations
// (lemmas, POS tags) stay inside whatever real pipeline feeds us.
type Token struct {
	Text string
}

// Pipeline turns raw text into an ordered token sequence. The slot layer
// consumes it both at schema-load time (to normalize synonym strings) and at
// inference time, so the two sides always agree on token representation.
type Pipeline interface {
	Feed(raw string) []Token
}

// DefaultPipeline is a reference normalizer: lowercase, punctuation stripped,
// whitespace-split. Production deployments plug in their own Pipeline.
type DefaultPipeline struct{}

// NewDefaultPipeline returns the reference pipeline.
func NewDefaultPipeline() *DefaultPipeline {
	return &DefaultPipeline{}
}

// Feed tokenizes raw text into normalized tokens.
func (p *DefaultPipeline) Feed(raw string) []Token {
	var tokens []Token
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, Token{Text: current.String()})
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// JoinTokens rebuilds the probe string used by every dictionary-like
// resolution path: token surfaces joined with single spaces.
func JoinTokens(tokens []Token) string {
	if len(tokens) == 0 {
		return ""
	}
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// Texts returns the surface strings of tokens in order.
func Texts(tokens []Token) []string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return parts
}
