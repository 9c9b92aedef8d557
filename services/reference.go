package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Largest multiple of len(referenceAlphabet) that fits in a byte; bytes at or
// above it are discarded so every symbol is equally likely.
const referenceByteLimit = 256 - 256%len(referenceAlphabet)

// ReferenceGenerator produces public application references of the form
// PREFIX-XXXXXXXX. Uniqueness is enforced by the store, not here.
type ReferenceGenerator struct {
	prefix string
	length int
	// entropy returns fresh random bytes; defaults to random v4 UUIDs.
	entropy func() ([]byte, error)
}

func NewReferenceGenerator(prefix string, length int) *ReferenceGenerator {
	return &ReferenceGenerator{
		prefix:  strings.ToUpper(strings.TrimSpace(prefix)),
		length:  length,
		entropy: uuidEntropy,
	}
}

func uuidEntropy() ([]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	// Bytes 6 and 8 carry the version and variant bits.
	out := make([]byte, 0, 14)
	out = append(out, id[0:6]...)
	out = append(out, id[7])
	out = append(out, id[9:]...)
	return out, nil
}

// Generate returns a new candidate reference.
func (g *ReferenceGenerator) Generate() (string, error) {
	var sb strings.Builder
	sb.Grow(len(g.prefix) + 1 + g.length)
	sb.WriteString(g.prefix)
	sb.WriteByte('-')

	written := 0
	for written < g.length {
		buf, err := g.entropy()
		if err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= referenceByteLimit {
				continue
			}
			sb.WriteByte(referenceAlphabet[int(b)%len(referenceAlphabet)])
			written++
			if written == g.length {
				break
			}
		}
	}
	return sb.String(), nil
}

// Matches reports whether ref has this generator's format.
func (g *ReferenceGenerator) Matches(ref string) bool {
	body, ok := strings.CutPrefix(ref, g.prefix+"-")
	if !ok || len(body) != g.length {
		return false
	}
	for i := 0; i < len(body); i++ {
		if strings.IndexByte(referenceAlphabet, body[i]) < 0 {
			return false
		}
	}
	return true
}
