package prompt

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer estimates how many tokens a rendered prompt will consume.
// The Prompt Assembler accepts one as a pluggable dependency, so an exact
// tokenizer can replace the char-approximation default without changing
// the Assembler's API.
type Tokenizer interface {
	Count(text string) int
}

// CharApproxTokenizer is the deliberate default simplification:
// characters/4, rounded up.
type CharApproxTokenizer struct{}

func (CharApproxTokenizer) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// TiktokenTokenizer wraps github.com/pkoukk/tiktoken-go for callers that
// need an exact count rather than the char/4 approximation.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the named encoding (e.g. "cl100k_base").
// Falls back to the char-approximation tokenizer if the encoding cannot
// be loaded, since a prompt-budgeting failure must never abort a run.
func NewTiktokenTokenizer(encoding string) Tokenizer {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil || enc == nil {
		return CharApproxTokenizer{}
	}
	return &TiktokenTokenizer{enc: enc}
}

func (t *TiktokenTokenizer) Count(text string) int {
	if t.enc == nil {
		return CharApproxTokenizer{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}
