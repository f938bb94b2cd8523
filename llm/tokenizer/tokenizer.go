// Package tokenizer provides token counting for chat requests. The tiktoken
// counter gives exact counts for OpenAI models; the estimator is an offline
// fallback used when the BPE files cannot be loaded.
package tokenizer

import (
	"unicode"

	"github.com/pkoukk/tiktoken-go"

	"github.com/netmind-ai/autocompany/types"
)

// Counter counts tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter returns an exact counter for the given model. Loading
// the encoding may fetch BPE data on first use; callers that must stay
// offline should fall back to NewEstimator.
func NewTiktokenCounter(model string) (Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Estimator approximates token counts without any encoding data: CJK runes
// count as one token each, runs of ASCII letters/digits as one token per
// four characters, everything else one token per rune. Close enough for
// usage accounting when the upstream omits it.
type Estimator struct{}

// NewEstimator returns the heuristic counter.
func NewEstimator() Counter { return Estimator{} }

func (Estimator) Count(text string) int {
	tokens := 0
	asciiRun := 0
	flush := func() {
		if asciiRun > 0 {
			tokens += (asciiRun + 3) / 4
			asciiRun = 0
		}
	}
	for _, r := range text {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			asciiRun++
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			flush()
			tokens++
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			tokens++
		}
	}
	flush()
	return tokens
}

// CountMessages counts the tokens of a message slice, adding a small fixed
// overhead per message for role and framing, matching OpenAI's accounting.
func CountMessages(c Counter, msgs []types.Message) int {
	const perMessageOverhead = 4
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead + c.Count(m.Content)
		if m.Name != "" {
			total += c.Count(m.Name)
		}
	}
	return total
}

// ForModel returns an exact counter when possible, the estimator otherwise.
func ForModel(model string) Counter {
	if c, err := NewTiktokenCounter(model); err == nil {
		return c
	}
	return NewEstimator()
}
