package exprlang

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/helidon-io/archetype-engine/value"
)

// ParseError reports a syntax error in the source expression. Pos is a byte
// offset into the original source when the token layer caught the error, or
// -1 when it was reported by the expression compiler against the rewritten
// form.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("expression: %s (at offset %d)", e.Msg, e.Pos)
	}
	return fmt.Sprintf("expression: %s", e.Msg)
}

// EvalError reports a failure evaluating an otherwise well-formed
// expression, most commonly an unresolved variable.
type EvalError struct {
	Path string
	Msg  string
}

func (e *EvalError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("expression: %s: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("expression: %s", e.Msg)
}

// Lookup resolves a dotted variable path to a Value. found is false when
// the path is unknown, which evaluation treats as a fatal error rather than
// a silent false.
type Lookup func(path string) (value.Value, bool, error)

// Names of the env functions the token layer rewrites non-standard guard
// syntax into. Double-underscored so they can never collide with a builtin
// or a variable path (paths are lowercase segments).
const (
	lookupFn   = "__lookup"
	containsFn = "__contains"
)

// Expression is a parsed guard/boolean expression. Guard syntax that
// expr-lang has no native spelling for — the infix `contains` keyword, the
// `${path}` variable form, and variable resolution through a caller-supplied
// (path -> Value) lookup instead of a reflected env — is rewritten by the
// token layer in lex.go into ordinary call syntax; the boolean/comparison
// grammar itself is then compiled and executed by expr-lang's parser and VM.
type Expression struct {
	raw    string
	prog   *vm.Program
	isTrue bool
}

// Eval evaluates the expression against lookup, implementing ast.Guard.
func (e *Expression) Eval(lookup func(path string) (value.Value, bool, error)) (bool, error) {
	v, err := e.evalValue(Lookup(lookup))
	if err != nil {
		return false, err
	}
	return v.AsBoolean()
}

// evalValue evaluates to the expression's Value, treating the shared
// literal-true expression (which is never compiled) as Bool(true). The VM's
// jump-based && / || keep short-circuit semantics: a __lookup call on the
// skipped side never runs.
func (e *Expression) evalValue(l Lookup) (value.Value, error) {
	if e == nil || e.isTrue {
		return value.NewBool(true), nil
	}
	out, err := expr.Run(e.prog, envFor(l))
	if err != nil {
		var ee *EvalError
		if errors.As(err, &ee) {
			return value.Nil, ee
		}
		return value.Nil, &EvalError{Msg: err.Error()}
	}
	return fromNative(out)
}

// IsLiteralTrue reports whether this expression is exactly the `true`
// constant, letting guard checks skip evaluation entirely.
func (e *Expression) IsLiteralTrue() bool {
	return e == nil || e.isTrue
}

// Raw returns the original source text.
func (e *Expression) Raw() string {
	if e == nil {
		return "true"
	}
	return e.raw
}

// True is the shared literal-true Expression, used as the default guard.
var True = &Expression{raw: "true", isTrue: true}

// Parse parses a guard/boolean expression:
//
//	expr    := or
//	or      := and ( '||' and )*
//	and     := cmp ( '&&' cmp )*
//	cmp     := unary ( ('==' | '!=' | 'contains') unary )?
//	unary   := '!' unary | primary
//	primary := literal | variable | '(' expr ')'
//
// The token layer rewrites the source (see rewrite in lex.go) and the
// result is compiled by expr-lang, so parse errors past tokenization carry
// the compiler's message without an original-source offset.
func Parse(s string) (*Expression, error) {
	s = strings.TrimSpace(s)
	if s == "true" {
		return True, nil
	}
	if s == "" {
		return nil, &ParseError{Pos: -1, Msg: "empty expression"}
	}
	src, err := rewrite(s)
	if err != nil {
		return nil, err
	}
	prog, err := expr.Compile(src)
	if err != nil {
		return nil, &ParseError{Pos: -1, Msg: err.Error()}
	}
	return &Expression{raw: s, prog: prog}, nil
}

// envFor builds the per-evaluation env the compiled program runs against:
// the two functions the token layer rewrote non-standard syntax into,
// closed over the caller's lookup.
func envFor(l Lookup) map[string]any {
	return map[string]any{
		lookupFn: func(path string) (any, error) {
			v, ok, err := l(path)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, &EvalError{Path: path, Msg: "unresolved variable"}
			}
			return toNative(path, v)
		},
		containsFn: containsCall,
	}
}

// toNative projects a context Value into the Go type the VM operates on.
func toNative(path string, v value.Value) (any, error) {
	switch v.Kind() {
	case value.Bool:
		b, err := v.GetBoolean()
		return b, err
	case value.List:
		return v.GetList()
	case value.String:
		return v.GetString()
	default:
		return nil, &EvalError{Path: path, Msg: "empty value"}
	}
}

// fromNative converts a VM result back into a Value. Integer results keep
// their textual projection: the guard grammar's integer literals are
// compared as strings, like every other scalar in the context.
func fromNative(v any) (value.Value, error) {
	switch x := v.(type) {
	case nil:
		return value.Nil, nil
	case bool:
		return value.NewBool(x), nil
	case string:
		return value.NewString(x), nil
	case []string:
		return value.NewList(x), nil
	case []any:
		items := make([]string, 0, len(x))
		for _, it := range x {
			s, err := textOf(it)
			if err != nil {
				return value.Nil, err
			}
			items = append(items, s)
		}
		return value.NewList(items), nil
	case int:
		return value.NewString(strconv.Itoa(x)), nil
	default:
		return value.NewString(fmt.Sprint(x)), nil
	}
}

func textOf(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	default:
		return "", fmt.Errorf("expression: cannot convert %T to text", v)
	}
}

// containsCall implements the guard grammar's `contains` operator over
// native VM values: string-contains (case-insensitive substring) or
// list-contains (case-insensitive membership).
func containsCall(container, item any) (bool, error) {
	want, err := textOf(item)
	if err != nil {
		return false, err
	}
	switch c := container.(type) {
	case string:
		return strings.Contains(strings.ToLower(c), strings.ToLower(want)), nil
	case []string:
		for _, e := range c {
			if strings.EqualFold(e, want) {
				return true, nil
			}
		}
		return false, nil
	case []any:
		for _, e := range c {
			s, err := textOf(e)
			if err != nil {
				return false, err
			}
			if strings.EqualFold(s, want) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("expression: contains needs a string or list container, got %T", container)
	}
}

// ParseInt is a small helper exposed for callers (e.g. the `order`
// attribute) that need the same integer-literal rules as the expression
// grammar's `integer` production.
func ParseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
