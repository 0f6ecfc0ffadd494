// Package scope defines access levels and the wire form of permission scopes.
package scope

import (
	"fmt"
	"strings"
)

// AccessLevel is the mask granted against a policy.
type AccessLevel string

const (
	// Deny blocks access to a policy regardless of other grants.
	Deny AccessLevel = "DENY"
	// Read allows read-only access.
	Read AccessLevel = "READ"
	// Write allows read and write access.
	Write AccessLevel = "WRITE"
)

// InvalidMaskError reports an unrecognized access level token.
type InvalidMaskError struct {
	Mask string
}

func (e *InvalidMaskError) Error() string {
	return fmt.Sprintf("scope: invalid access level %q", e.Mask)
}

// MalformedScopeError reports a scope string that cannot be split into
// policy name and mask. When the mask token itself is the problem, Cause
// carries the InvalidMaskError.
type MalformedScopeError struct {
	Input string
	Cause error
}

func (e *MalformedScopeError) Error() string {
	return fmt.Sprintf("scope: malformed scope %q", e.Input)
}

func (e *MalformedScopeError) Unwrap() error { return e.Cause }

// ParseLevel converts a case-insensitive mask token into an AccessLevel.
func ParseLevel(s string) (AccessLevel, error) {
	switch strings.ToUpper(s) {
	case string(Deny):
		return Deny, nil
	case string(Read):
		return Read, nil
	case string(Write):
		return Write, nil
	default:
		return "", &InvalidMaskError{Mask: s}
	}
}

// Rank orders the two non-deny levels: WRITE beats READ. Deny is not part of
// this ordering; merging treats it as an unconditional veto.
func (l AccessLevel) Rank() int {
	switch l {
	case Write:
		return 2
	case Read:
		return 1
	default:
		return 0
	}
}

// Scope pairs a policy name with an access level.
type Scope struct {
	PolicyName string
	Level      AccessLevel
}

// Parse splits a wire scope of the form "policyName.MASK" on the last dot.
// Policy names may themselves contain dots.
func Parse(text string) (Scope, error) {
	idx := strings.LastIndex(text, ".")
	if idx <= 0 || idx == len(text)-1 {
		return Scope{}, &MalformedScopeError{Input: text}
	}
	level, err := ParseLevel(text[idx+1:])
	if err != nil {
		return Scope{}, &MalformedScopeError{Input: text, Cause: err}
	}
	return Scope{PolicyName: text[:idx], Level: level}, nil
}

// String renders the canonical wire form, uppercase mask.
func (s Scope) String() string {
	return s.PolicyName + "." + string(s.Level)
}

// ParseAll parses a list of wire scopes, failing on the first malformed entry.
func ParseAll(texts []string) ([]Scope, error) {
	scopes := make([]Scope, 0, len(texts))
	for _, t := range texts {
		sc, err := Parse(t)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, nil
}

// FormatAll renders scopes in canonical wire form.
func FormatAll(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, sc := range scopes {
		out[i] = sc.String()
	}
	return out
}
