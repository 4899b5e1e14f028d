// Package slug generates human-readable, URL-safe identifiers for events and
// participants: a dasherized prefix of the label followed by a random suffix.
package slug

import (
	"context"
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultMaxLength is the total slug length cap, suffix included.
	DefaultMaxLength = 32
	// DefaultSuffixLength is the length of the random suffix.
	DefaultSuffixLength = 7
)

// alphabet has 63 symbols. RandomString masks bytes to 6 bits and rejects
// the single value past the end.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9\-\s]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// TakenFunc reports whether a candidate slug is already used in a namespace.
type TakenFunc func(ctx context.Context, slug string) (bool, error)

// Generator builds slugs. The zero value is not usable; call New.
type Generator struct {
	maxLength    int
	suffixLength int
	random       func(n int) (string, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxLength caps the total slug length.
func WithMaxLength(n int) Option {
	return func(g *Generator) { g.maxLength = n }
}

// WithSuffixLength sets the random suffix length.
func WithSuffixLength(n int) Option {
	return func(g *Generator) { g.suffixLength = n }
}

// WithRandom replaces the suffix source. Used by tests.
func WithRandom(fn func(n int) (string, error)) Option {
	return func(g *Generator) { g.random = fn }
}

// New creates a Generator with the default lengths and a crypto/rand suffix.
func New(opts ...Option) *Generator {
	g := &Generator{
		maxLength:    DefaultMaxLength,
		suffixLength: DefaultSuffixLength,
		random:       RandomString,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.suffixLength <= 0 {
		g.suffixLength = DefaultSuffixLength
	}
	if g.maxLength <= g.suffixLength {
		g.maxLength = g.suffixLength + 1
	}
	return g
}

// Generate returns prefix(label) + "-" + random suffix. A label with nothing
// usable in it yields the bare suffix.
func (g *Generator) Generate(label string) (string, error) {
	suffix, err := g.random(g.suffixLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate slug suffix: %w", err)
	}
	room := g.maxLength - g.suffixLength - 1
	if room <= 0 {
		return suffix, nil
	}
	prefix := Dasherize(label, room)
	if prefix == "" {
		return suffix, nil
	}
	return prefix + "-" + suffix, nil
}

// Unique draws candidates until taken reports one as free. The full candidate
// is checked, so two draws never return the same slug for one namespace.
// There is no retry cap; at 63^7 suffixes a collision is improbable and ctx
// bounds the loop.
func (g *Generator) Unique(ctx context.Context, label string, taken TakenFunc) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := g.Generate(label)
		if err != nil {
			return "", err
		}
		exists, err := taken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
}

// Dasherize lowercases label, strips accents and special characters and joins
// words with dashes, keeping at most maxLen characters.
func Dasherize(label string, maxLen int) string {
	s, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), label)
	if err != nil {
		s = label
	}
	s = strings.TrimSpace(s)
	s = invalidChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespace.ReplaceAllString(s, "-")
}

// RandomString returns n symbols drawn uniformly from [A-Za-z0-9_].
func RandomString(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if idx := int(b & 63); idx < len(alphabet) && len(out) < n {
				out = append(out, alphabet[idx])
			}
		}
	}
	return string(out), nil
}
