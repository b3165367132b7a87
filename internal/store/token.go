package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator issues bearer tokens for newly registered clients.
// Implemented by RandomTokenGenerator (production) and FixedTokenGenerator (tests).
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokenGenerator issues 256-bit tokens built from two random (v4) UUIDs.
//
// uuid.NewRandom reads from crypto/rand, so tokens are unguessable.
// Uniqueness across clients is additionally enforced by the UNIQUE
// constraint on clients.token.
//
// Thread-safety: RandomTokenGenerator is stateless and safe for concurrent use.
type RandomTokenGenerator struct{}

// Generate returns a 64-character lowercase hex token.
func (RandomTokenGenerator) Generate() (string, error) {
	var b strings.Builder
	for i := 0; i < 2; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		b.WriteString(strings.ReplaceAll(id.String(), "-", ""))
	}
	return b.String(), nil
}

// FixedTokenGenerator returns predetermined tokens for testing.
//
// Thread-safety: FixedTokenGenerator is safe for concurrent use via internal mutex.
type FixedTokenGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokenGenerator creates a generator that returns tokens in order.
func NewFixedTokenGenerator(tokens ...string) *FixedTokenGenerator {
	return &FixedTokenGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
// Returns an error once all tokens have been consumed.
func (g *FixedTokenGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		return "", fmt.Errorf("FixedTokenGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token, nil
}
