package pet

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInvalidName        = errors.New("invalid pet name")
	ErrNameTaken          = errors.New("pet name already used")
	ErrInvalidPersonality = errors.New("invalid personality")
)

// ValidationError describes a rejected input field
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateName trims name and checks it is 1 to 12 printable characters
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return "", &ValidationError{Field: "name", Value: name, Reason: "must not be empty", Err: ErrInvalidName}
	case n > MaxNameLength:
		return "", &ValidationError{Field: "name", Value: name, Reason: fmt.Sprintf("must be at most %d characters", MaxNameLength), Err: ErrInvalidName}
	}
	for _, r := range trimmed {
		if !unicode.IsPrint(r) {
			return "", &ValidationError{Field: "name", Value: name, Reason: "contains unprintable characters", Err: ErrInvalidName}
		}
	}
	return trimmed, nil
}

// ParsePersonality accepts a personality name in any case. Empty input is
// returned as is so callers can pick one at random.
func ParsePersonality(s string) (Personality, error) {
	p := Personality(strings.ToLower(strings.TrimSpace(s)))
	if p == "" || p.Valid() {
		return p, nil
	}
	return "", &ValidationError{Field: "personality", Value: s, Reason: "unknown personality", Err: ErrInvalidPersonality}
}

// Names is the permanent registry of every name given to a pet.
// Comparison ignores case.
type Names struct {
	names map[string]string
}

// NewNames builds a registry from previously used names
func NewNames(used []string) *Names {
	n := &Names{names: make(map[string]string, len(used))}
	for _, name := range used {
		if name = strings.TrimSpace(name); name != "" {
			n.names[strings.ToLower(name)] = name
		}
	}
	return n
}

// Taken reports whether name was ever used
func (n *Names) Taken(name string) bool {
	_, ok := n.names[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Reserve validates name and records it. It returns the trimmed name.
func (n *Names) Reserve(name string) (string, error) {
	valid, err := ValidateName(name)
	if err != nil {
		return "", err
	}
	if n.Taken(valid) {
		return "", &ValidationError{Field: "name", Value: name, Reason: "already given to another pet", Err: ErrNameTaken}
	}
	n.names[strings.ToLower(valid)] = valid
	return valid, nil
}

// List returns the used names sorted case-insensitively
func (n *Names) List() []string {
	out := make([]string, 0, len(n.names))
	for _, name := range n.names {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// Len is the number of reserved names
func (n *Names) Len() int {
	return len(n.names)
}
