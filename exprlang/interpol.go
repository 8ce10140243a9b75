package exprlang

import (
	"strings"
	"unicode/utf8"

	"github.com/helidon-io/archetype-engine/value"
)

// Span captures the location of a ${...} expression within an interpolated
// string (offsets are into the original template, excluding the ${ }
// delimiters).
type Span struct {
	Start, Length int
}

// Template is a parsed `${...}`-interpolated string: a sequence of literal
// text runs and parsed expression runs.
type Template struct {
	raw   string
	parts []templatePart
	spans []Span
}

type templatePart struct {
	text string  // literal text, when expr == nil
	expr *Expression
}

// ParseTemplate scans s for ${...} placeholders with a brace-depth-aware
// scanner, so an expression containing nested braces or quoted strings
// still lexes to one span. A string with no placeholders parses to a
// single literal-text part.
func ParseTemplate(s string) (*Template, error) {
	items, err := scanInterpol(s)
	if err != nil {
		return nil, err
	}
	t := &Template{raw: s}
	for _, it := range items {
		if it.isExpr {
			e, err := Parse(it.val)
			if err != nil {
				return nil, err
			}
			t.parts = append(t.parts, templatePart{expr: e})
			t.spans = append(t.spans, Span{Start: it.start, Length: it.length})
		} else {
			t.parts = append(t.parts, templatePart{text: it.val})
		}
	}
	return t, nil
}

// IsPlainText reports whether the template has no ${...} expressions.
func (t *Template) IsPlainText() bool {
	for _, p := range t.parts {
		if p.expr != nil {
			return false
		}
	}
	return true
}

// Spans returns the byte offsets of each expression run within the original
// template text.
func (t *Template) Spans() []Span { return t.spans }

// Raw returns the original, unexpanded template text.
func (t *Template) Raw() string { return t.raw }

// Eval expands the template once against lookup. If the template is a
// single bare expression part (no surrounding literal text), the
// expression's native Value is returned unconverted: e.g. "${count}"
// alone can yield a List-valued ContextValue intact, rather than forcing a
// string. Multi-part templates concatenate the string projection of every
// part.
func (t *Template) Eval(lookup Lookup) (value.Value, error) {
	if len(t.parts) == 1 && t.parts[0].expr != nil {
		return t.parts[0].expr.evalValue(lookup)
	}
	var b strings.Builder
	for _, p := range t.parts {
		if p.expr == nil {
			b.WriteString(p.text)
			continue
		}
		v, err := p.expr.evalValue(lookup)
		if err != nil {
			return value.Nil, err
		}
		s, err := v.AsString()
		if err != nil {
			return value.Nil, err
		}
		b.WriteString(s)
	}
	return value.NewString(b.String()), nil
}

// Interpolate repeatedly expands s until a fixed point is reached or
// maxIterations is hit, at which point it reports a cycle error.
func Interpolate(s string, lookup Lookup) (string, error) {
	const maxIterations = 256
	cur := s
	for i := 0; i < maxIterations; i++ {
		tmpl, err := ParseTemplate(cur)
		if err != nil {
			return "", err
		}
		if tmpl.IsPlainText() {
			return cur, nil
		}
		v, err := tmpl.Eval(lookup)
		if err != nil {
			return "", err
		}
		next, err := v.AsString()
		if err != nil {
			return "", err
		}
		if next == cur {
			return next, nil
		}
		cur = next
	}
	return "", &EvalError{Msg: "interpolation did not reach a fixed point within 256 iterations (possible cycle)"}
}

// --- scanner: ${...} span tokenizer ---

const (
	interpolLeft  = "${"
	interpolRight = "}"
)

type interpolItem struct {
	isExpr      bool
	val         string
	start, length int
}

func scanInterpol(s string) ([]interpolItem, error) {
	var items []interpolItem
	pos := 0
	for pos < len(s) {
		idx := strings.Index(s[pos:], interpolLeft)
		if idx < 0 {
			items = append(items, interpolItem{val: s[pos:]})
			pos = len(s)
			break
		}
		if idx > 0 {
			items = append(items, interpolItem{val: s[pos : pos+idx]})
		}
		pos += idx + len(interpolLeft)
		exprStart := pos
		depth := 0
		closed := false
		for pos < len(s) {
			r, w := utf8.DecodeRuneInString(s[pos:])
			if depth == 0 && strings.HasPrefix(s[pos:], interpolRight) {
				closed = true
				break
			}
			switch r {
			case '{':
				depth++
			case '}':
				depth--
			case '"', '\'':
				pos += w
				quote := r
				for pos < len(s) {
					r2, w2 := utf8.DecodeRuneInString(s[pos:])
					if r2 == '\\' {
						pos += w2
						if pos < len(s) {
							_, w3 := utf8.DecodeRuneInString(s[pos:])
							pos += w3
						}
						continue
					}
					pos += w2
					if r2 == quote {
						break
					}
				}
				continue
			}
			pos += w
		}
		if !closed {
			return nil, &ParseError{Pos: exprStart, Msg: "unclosed ${ interpolation"}
		}
		items = append(items, interpolItem{isExpr: true, val: s[exprStart:pos], start: exprStart, length: pos - exprStart})
		pos += len(interpolRight)
	}
	if len(items) == 0 {
		items = append(items, interpolItem{val: ""})
	}
	return items, nil
}
