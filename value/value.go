// Package value implements the tagged-union Value type used throughout the
// archetype engine: node attributes, context values, and expression results
// are all represented as a Value rather than as a hierarchy of concrete
// types.
package value

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/hashstructure/v2"
)

// Kind is the closed set of Value projections.
type Kind int

const (
	// Empty represents the absence of a value.
	Empty Kind = iota
	Bool
	String
	List
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Bool:
		return "boolean"
	case String:
		return "string"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// TypeError is returned when a Value is asked to convert to an incompatible
// Kind via a strict Get accessor, or when an Empty value with no configured
// error is dereferenced.
type TypeError struct {
	Want Kind
	Have Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("value: want %s, have %s", e.Want, e.Have)
}

// lazyString memoizes a dynamic string computation. It is shared (via
// pointer) across copies of the Value that produced it, so the thunk runs
// at most once no matter how many times the Value is passed by value.
type lazyString struct {
	once sync.Once
	fn   func() (string, error)
	val  string
	err  error
}

func (l *lazyString) get() (string, error) {
	l.once.Do(func() { l.val, l.err = l.fn() })
	return l.val, l.err
}

// Value is a tagged union over Empty, Bool, String and List projections.
// The zero Value is Empty.
type Value struct {
	kind     Kind
	b        bool
	s        string
	list     []string
	lazy     *lazyString
	emptyErr error
}

// NewEmpty returns the empty Value. If err is non-nil, dereferencing the value
// with any AsX/GetX accessor returns err instead of a generic TypeError.
func NewEmpty(err error) Value {
	return Value{kind: Empty, emptyErr: err}
}

// Nil is the canonical Empty value with no associated error.
var Nil = Value{kind: Empty}

// NewBool wraps a boolean.
func NewBool(b bool) Value {
	return Value{kind: Bool, b: b}
}

// NewString wraps a string.
func NewString(s string) Value {
	return Value{kind: String, s: s}
}

// NewStringLazy wraps a string that is computed on first conversion.
func NewStringLazy(thunk func() (string, error)) Value {
	return Value{kind: String, lazy: &lazyString{fn: thunk}}
}

// NewList wraps a string list.
func NewList(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: List, list: cp}
}

// Kind reports the Value's projection.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the Value carries no data.
func (v Value) IsEmpty() bool { return v.kind == Empty }

func (v Value) emptyError() error {
	if v.emptyErr != nil {
		return v.emptyErr
	}
	return &TypeError{Have: Empty}
}

// resolveString forces the lazy thunk, if any.
func (v Value) resolveString() (string, error) {
	if v.lazy != nil {
		return v.lazy.get()
	}
	return v.s, nil
}

// ParseBool parses an archetype boolean literal. Accepted literals (case
// insensitive): y, yes, true map to true; n, no, false map to false. Any
// other input is an error when strict is true, or false when strict is
// false.
func ParseBool(s string, strict bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true":
		return true, nil
	case "n", "no", "false":
		return false, nil
	default:
		if strict {
			return false, fmt.Errorf("value: %q is not a valid boolean literal", s)
		}
		return false, nil
	}
}

// AsBoolean converts the Value to a bool. A Bool value is returned as-is; a
// String value is parsed strictly via ParseBool; any other kind is a
// TypeError.
func (v Value) AsBoolean() (bool, error) {
	switch v.kind {
	case Bool:
		return v.b, nil
	case String:
		s, err := v.resolveString()
		if err != nil {
			return false, err
		}
		return ParseBool(s, true)
	case Empty:
		return false, v.emptyError()
	default:
		return false, &TypeError{Want: Bool, Have: v.kind}
	}
}

// AsString converts the Value to its string projection. Bool renders as
// "true"/"false"; List joins with ", ".
func (v Value) AsString() (string, error) {
	switch v.kind {
	case String:
		return v.resolveString()
	case Bool:
		return strconv.FormatBool(v.b), nil
	case List:
		return strings.Join(v.list, ", "), nil
	case Empty:
		return "", v.emptyError()
	default:
		return "", &TypeError{Want: String, Have: v.kind}
	}
}

// AsList converts the Value to a string list. A List is returned as-is; a
// String is treated as a single-element list unless empty, in which case it
// yields an empty list.
func (v Value) AsList() ([]string, error) {
	switch v.kind {
	case List:
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out, nil
	case String:
		s, err := v.resolveString()
		if err != nil {
			return nil, err
		}
		if s == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	case Empty:
		return nil, v.emptyError()
	default:
		return nil, &TypeError{Want: List, Have: v.kind}
	}
}

// AsInt converts a String value holding a base-10 integer literal.
func (v Value) AsInt() (int, error) {
	switch v.kind {
	case String:
		s, err := v.resolveString()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("value: %q is not an integer: %w", s, err)
		}
		return n, nil
	case Empty:
		return 0, v.emptyError()
	default:
		return 0, &TypeError{Want: String, Have: v.kind}
	}
}

// GetBoolean is the strict accessor: it fails unless the Value is already of
// Kind Bool.
func (v Value) GetBoolean() (bool, error) {
	if v.kind == Empty {
		return false, v.emptyError()
	}
	if v.kind != Bool {
		return false, &TypeError{Want: Bool, Have: v.kind}
	}
	return v.b, nil
}

// GetString is the strict accessor: it fails unless the Value is already of
// Kind String.
func (v Value) GetString() (string, error) {
	if v.kind == Empty {
		return "", v.emptyError()
	}
	if v.kind != String {
		return "", &TypeError{Want: String, Have: v.kind}
	}
	return v.resolveString()
}

// GetList is the strict accessor: it fails unless the Value is already of
// Kind List.
func (v Value) GetList() ([]string, error) {
	if v.kind == Empty {
		return nil, v.emptyError()
	}
	if v.kind != List {
		return nil, &TypeError{Want: List, Have: v.kind}
	}
	out := make([]string, len(v.list))
	copy(out, v.list)
	return out, nil
}

// canonical returns a hashable, order-preserving representation of the
// Value's projection used for equality checks. Resolving lazy strings may
// fail; the error is surfaced to the caller of Equal.
func (v Value) canonical() (any, error) {
	switch v.kind {
	case Empty:
		return nil, nil
	case Bool:
		return v.b, nil
	case String:
		s, err := v.resolveString()
		return s, err
	case List:
		return append([]string(nil), v.list...), nil
	default:
		return nil, &TypeError{Have: v.kind}
	}
}

// Equal reports whether two Values project to the same canonical Kind and
// value. Values of different Kind are never equal, even if one could be
// coerced into the other via AsX (equality never applies implicit
// coercion). Canonical forms are compared via a structural hash
// (mitchellh/hashstructure) so list equality honors element order without a
// bespoke slice-equality helper.
func (v Value) Equal(other Value) (bool, error) {
	if v.kind != other.kind {
		return false, nil
	}
	a, err := v.canonical()
	if err != nil {
		return false, err
	}
	b, err := other.canonical()
	if err != nil {
		return false, err
	}
	ha, err := hashstructure.Hash(a, hashstructure.FormatV2, nil)
	if err != nil {
		return false, fmt.Errorf("value: hash: %w", err)
	}
	hb, err := hashstructure.Hash(b, hashstructure.FormatV2, nil)
	if err != nil {
		return false, fmt.Errorf("value: hash: %w", err)
	}
	return ha == hb, nil
}

// String implements fmt.Stringer for debugging/log output; it never fails,
// falling back to a placeholder on conversion error.
func (v Value) String() string {
	s, err := v.AsString()
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return s
}
