package diagram

import (
	"fmt"
	"strings"

	"github.com/go-openapi/jsonpointer"

	"github.com/axonops/openapi-diagram/internal/openapi"
)

// Scope selects part of a document by JSON pointer, stored as decoded tokens.
// The empty scope selects every path.
type Scope []string

// ParseScope parses a JSON pointer such as "/paths/~1pets/get". A leading "#"
// is accepted.
func ParseScope(pointer string) (Scope, error) {
	pointer = strings.TrimPrefix(pointer, "#")
	if pointer == "" {
		return nil, nil
	}
	p, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, fmt.Errorf("invalid scope %q: %w", pointer, err)
	}
	return Scope(p.DecodedTokens()), nil
}

// MustParseScope is like ParseScope but panics on error.
func MustParseScope(pointer string) Scope {
	s, err := ParseScope(pointer)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the scope as an escaped JSON pointer.
func (s Scope) String() string {
	return openapi.JoinPointer("", s...)
}

// IsEmpty reports whether the scope selects the whole document.
func (s Scope) IsEmpty() bool {
	return len(s) == 0
}

// Overlaps reports whether ptr lies on the path to the scope or inside it.
func (s Scope) Overlaps(ptr string) bool {
	tokens := pointerTokens(ptr)
	n := len(s)
	if len(tokens) < n {
		n = len(tokens)
	}
	return equalTokens(s[:n], tokens[:n])
}

// Contains reports whether ptr lies at or below the scope.
func (s Scope) Contains(ptr string) bool {
	tokens := pointerTokens(ptr)
	if len(tokens) < len(s) {
		return false
	}
	return equalTokens(s, tokens[:len(s)])
}

func pointerTokens(ptr string) []string {
	if ptr == "" {
		return nil
	}
	p, err := jsonpointer.New(ptr)
	if err != nil {
		return nil
	}
	return p.DecodedTokens()
}

func equalTokens(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
