// Package ctxscope implements the hierarchical, visibility-aware key/value
// store the archetype engine resolves against: ContextPath (a dotted path
// grammar with ROOT/PARENT reference operators), ContextValue (a Value
// tagged with its provenance), and Scope (the scope tree itself, with path
// resolution, visibility rules and `${...}` interpolation). Scopes are not
// just lexical variable frames: they form an addressable hierarchy, and a
// value's provenance decides whether a later write may replace it.
package ctxscope

import (
	"fmt"
	"strings"
)

// PathError reports a malformed ContextPath.
type PathError struct {
	Raw string
	Msg string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("context path %q: %s", e.Raw, e.Msg)
}

// ContextPath is a parsed dotted path, optionally led by the ROOT reference
// operator (absolute) or one or more PARENT operators (climb N scopes
// before resolving the remaining segments).
type ContextPath struct {
	raw          string
	explicitRoot bool
	absolute     bool
	up           int
	segments     []string
}

// Absolute reports whether the path resolves from the document root. A
// path that begins with a plain segment is just as absolute as one using
// the explicit ROOT keyword.
func (p *ContextPath) Absolute() bool { return p.absolute }

// Up returns the number of PARENT hops to apply before descending into
// Segments (zero for absolute paths).
func (p *ContextPath) Up() int { return p.up }

// Segments returns the path's plain segments, in order.
func (p *ContextPath) Segments() []string { return p.segments }

// String reconstructs the original textual form: Parse(s).String() == s
// for every accepted s.
func (p *ContextPath) String() string {
	var parts []string
	if p.explicitRoot {
		parts = append(parts, "ROOT")
	}
	for i := 0; i < p.up; i++ {
		parts = append(parts, "PARENT")
	}
	parts = append(parts, p.segments...)
	return strings.Join(parts, ".")
}

// ParsePath parses a ContextPath string. A segment consists of lowercase
// letters, digits, and internal single '-' separators; "--" and any other
// character are rejected.
func ParsePath(s string) (*ContextPath, error) {
	if s == "" {
		return nil, &PathError{Raw: s, Msg: "empty path"}
	}
	parts := strings.Split(s, ".")
	p := &ContextPath{raw: s}

	i := 0
	switch parts[0] {
	case "ROOT":
		p.explicitRoot = true
		p.absolute = true
		i = 1
	case "PARENT":
		for i < len(parts) && parts[i] == "PARENT" {
			p.up++
			i++
		}
	default:
		p.absolute = true
	}

	if i == len(parts) && (p.explicitRoot || p.up > 0) {
		// "ROOT" or "PARENT[.PARENT]*" alone, with no trailing segments, is
		// valid: it addresses the scope reached by the reference operators
		// themselves.
		return p, nil
	}

	for ; i < len(parts); i++ {
		seg := parts[i]
		if err := validateSegment(seg); err != nil {
			return nil, &PathError{Raw: s, Msg: err.Error()}
		}
		p.segments = append(p.segments, seg)
	}
	if len(p.segments) == 0 {
		return nil, &PathError{Raw: s, Msg: "path has no segments"}
	}
	return p, nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("empty segment")
	}
	if strings.Contains(seg, "--") {
		return fmt.Errorf("segment %q contains '--'", seg)
	}
	if seg[0] == '-' || seg[len(seg)-1] == '-' {
		return fmt.Errorf("segment %q has a leading or trailing '-'", seg)
	}
	for _, r := range seg {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			continue
		}
		return fmt.Errorf("segment %q contains illegal character %q", seg, r)
	}
	return nil
}
