package domain

import (
	"fmt"
	"strings"
)

const (
	MinCodeLength = 6
	MaxCodeLength = 32
)

// Code is an invitation code. Two codes that differ only in letter case are
// the same code: compare with Equal and index maps with Key.
type Code struct {
	raw string
}

// NewCode validates raw and wraps it. The input casing is kept in Raw.
func NewCode(raw string) (Code, error) {
	if raw == "" {
		return Code{}, fmt.Errorf("%w: code cannot be empty", ErrInvalidCode)
	}
	if len(raw) < MinCodeLength {
		return Code{}, fmt.Errorf("%w: must be at least %d characters long, got %d", ErrInvalidCode, MinCodeLength, len(raw))
	}
	if len(raw) > MaxCodeLength {
		return Code{}, fmt.Errorf("%w: must be at most %d characters long, got %d", ErrInvalidCode, MaxCodeLength, len(raw))
	}
	for i := 0; i < len(raw); i++ {
		if !isCodeChar(raw[i]) {
			return Code{}, fmt.Errorf("%w: only letters, digits, hyphens and underscores are allowed", ErrInvalidCode)
		}
	}
	return Code{raw: raw}, nil
}

// MustCode is NewCode for literals known to be valid.
func MustCode(raw string) Code {
	c, err := NewCode(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func isCodeChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_':
		return true
	}
	return false
}

// Raw returns the code as it was supplied.
func (c Code) Raw() string { return c.raw }

// Key is the canonical uppercase form used for equality, indexing and storage lookups.
func (c Code) Key() string { return strings.ToUpper(c.raw) }

func (c Code) String() string { return c.Key() }

func (c Code) Equal(other Code) bool { return c.Key() == other.Key() }
