// Package token counts and estimates prompt tokens.
package token

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter wraps a tiktoken encoder for exact token counts.
type Counter struct {
	encoder  *tiktoken.Tiktoken
	encoding string
}

const defaultEncoding = "cl100k_base"

// NewCounter creates a counter with the specified encoding.
// Supported encodings include:
//   - "cl100k_base" (GPT-4, GPT-4-turbo, GPT-3.5-turbo)
//   - "o200k_base" (GPT-4o)
//   - "p50k_base" (GPT-3, Codex)
//
// Falls back to cl100k_base if the specified encoding is not found.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}

	encoder, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		encoder, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, err
		}
		encoding = defaultEncoding
	}

	return &Counter{
		encoder:  encoder,
		encoding: encoding,
	}, nil
}

// Encoding returns the current encoding name.
func (c *Counter) Encoding() string {
	return c.encoding
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoder.Encode(text, nil, nil))
}

// LazyCounter loads its encoding on the first Count call, since tiktoken may
// have to download the BPE ranks. If loading fails it falls back to
// EstimateTokenCount for the rest of its life.
type LazyCounter struct {
	encoding string
	once     sync.Once
	counter  *Counter
	err      error
}

// NewLazyCounter creates a counter that defers loading encoding.
func NewLazyCounter(encoding string) *LazyCounter {
	return &LazyCounter{encoding: encoding}
}

// Count returns the number of tokens in text.
func (c *LazyCounter) Count(text string) int {
	c.once.Do(func() {
		c.counter, c.err = NewCounter(c.encoding)
	})
	if c.err != nil {
		return EstimateTokenCount(text)
	}
	return c.counter.Count(text)
}

// Err reports why the encoding could not be loaded, after the first Count.
func (c *LazyCounter) Err() error {
	return c.err
}

// EstimateTokenCount approximates the token count of text as one token per
// four characters, rounded up. Characters are Unicode code points. It is the
// figure reserved against the rate limiter before a provider call.
func EstimateTokenCount(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
