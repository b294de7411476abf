package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSide is returned when a side cannot be parsed.
var ErrInvalidSide = errors.New("invalid coin side")

// Side is one face of the coin.
type Side int16

const (
	SideHeads Side = iota
	SideTails
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideHeads || s == SideTails
}

// String returns the lowercase name of the side.
func (s Side) String() string {
	switch s {
	case SideHeads:
		return "heads"
	case SideTails:
		return "tails"
	default:
		return fmt.Sprintf("side(%d)", int16(s))
	}
}

// ParseSide accepts "heads"/"tails" in any case, or the single letters h/t.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heads", "h":
		return SideHeads, nil
	case "tails", "t":
		return SideTails, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int16(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
