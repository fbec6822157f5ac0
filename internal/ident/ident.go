// Package ident generates segment and run identifiers.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// DefaultLength is the default number of hex characters in a segment ID.
// Twelve digits give over a trillion possibilities, enough for identifiers
// that only need to be unique within one document.
const DefaultLength = 12

// Generator produces random hex segment IDs of a fixed length. A Generator
// is scoped to one extraction run; create a new one per document so parallel
// runs share no state.
type Generator struct {
	length int
}

// NewGenerator returns a Generator producing IDs of the given length.
// Lengths below 2 are raised to 2; odd lengths are rounded down to even.
func NewGenerator(length int) *Generator {
	if length < 2 {
		length = 2
	}
	return &Generator{length: length &^ 1}
}

// Length returns the length of generated IDs.
func (g *Generator) Length() int {
	return g.length
}

// NewID returns a random hex string of the configured length.
func (g *Generator) NewID() (string, error) {
	buf := make([]byte, g.length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewRunID returns a UUID identifying one pipeline run, used for log
// correlation and the artifact manifest.
func NewRunID() string {
	return uuid.NewString()
}
