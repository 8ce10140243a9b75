// Package ast defines the uniform tagged-tree representation that every
// parsed archetype script is reduced to: a Node carries a Kind, a Location,
// attributes, a Value, an optional guard Expression, and a parent/children
// relation. Nodes are owned by their Script and are never mutated once a
// script has finished parsing.
//
// The tree shape (parent back-reference, ordered children slice) follows
// the linked-node idiom of golang.org/x/net/html: Go's garbage collector
// tolerates the parent<->child reference cycle, so there is no need for an
// arena/NodeId indirection here.
package ast

import "github.com/helidon-io/archetype-engine/value"

// Kind is the closed set of script element kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindArchetypeScript
	KindMethods
	KindMethod
	KindStep
	KindInputs
	KindInputBoolean
	KindInputText
	KindInputEnum
	KindInputList
	KindOption
	KindPresets
	KindVariables
	KindPresetBoolean
	KindPresetText
	KindPresetEnum
	KindPresetList
	KindVariableBoolean
	KindVariableText
	KindVariableEnum
	KindVariableList
	KindOutput
	KindFile
	KindFiles
	KindTemplate
	KindTemplates
	KindTransformation
	KindReplace
	KindIncludes
	KindInclude
	KindExcludes
	KindExclude
	KindModel
	KindModelValue
	KindModelList
	KindModelMap
	KindValidations
	KindValidation
	KindRegex
	KindExec
	KindSource
	KindCall
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindArchetypeScript:  "archetype-script",
	KindMethods:          "methods",
	KindMethod:           "method",
	KindStep:             "step",
	KindInputs:           "inputs",
	KindInputBoolean:     "input(boolean)",
	KindInputText:        "input(text)",
	KindInputEnum:        "input(enum)",
	KindInputList:        "input(list)",
	KindOption:           "option",
	KindPresets:          "presets",
	KindVariables:        "variables",
	KindPresetBoolean:    "preset(boolean)",
	KindPresetText:       "preset(text)",
	KindPresetEnum:       "preset(enum)",
	KindPresetList:       "preset(list)",
	KindVariableBoolean:  "variable(boolean)",
	KindVariableText:     "variable(text)",
	KindVariableEnum:     "variable(enum)",
	KindVariableList:     "variable(list)",
	KindOutput:           "output",
	KindFile:             "file",
	KindFiles:            "files",
	KindTemplate:         "template",
	KindTemplates:        "templates",
	KindTransformation:   "transformation",
	KindReplace:          "replace",
	KindIncludes:         "includes",
	KindInclude:          "include",
	KindExcludes:         "excludes",
	KindExclude:          "exclude",
	KindModel:            "model",
	KindModelValue:       "value",
	KindModelList:        "list",
	KindModelMap:         "map",
	KindValidations:      "validations",
	KindValidation:       "validation",
	KindRegex:            "regex",
	KindExec:             "exec",
	KindSource:           "source",
	KindCall:             "call",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsInput reports whether k is one of the four INPUT_* kinds.
func (k Kind) IsInput() bool {
	switch k {
	case KindInputBoolean, KindInputText, KindInputEnum, KindInputList:
		return true
	}
	return false
}

// IsPreset reports whether k is one of the four PRESET_* kinds.
func (k Kind) IsPreset() bool {
	switch k {
	case KindPresetBoolean, KindPresetText, KindPresetEnum, KindPresetList:
		return true
	}
	return false
}

// IsVariable reports whether k is one of the four VARIABLE_* kinds.
func (k Kind) IsVariable() bool {
	switch k {
	case KindVariableBoolean, KindVariableText, KindVariableEnum, KindVariableList:
		return true
	}
	return false
}

// IsModel reports whether k is one of the three MODEL_* kinds.
func (k Kind) IsModel() bool {
	switch k {
	case KindModelValue, KindModelList, KindModelMap:
		return true
	}
	return false
}

// Location is a file + line/column position, used to annotate errors and to
// synthesize Invocation stack frames.
type Location struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return l.File + ":" + itoa(l.Line) + ":" + itoa(l.Column)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Guard is the minimal interface a compiled guard expression must satisfy so
// that ast does not need to import the exprlang package (which itself
// depends on value, not ast; this keeps the dependency graph acyclic).
// exprlang.Expression implements this interface.
type Guard interface {
	// Eval evaluates the guard against the given variable lookup.
	Eval(lookup func(path string) (value.Value, bool, error)) (bool, error)
	// IsLiteralTrue reports whether the guard is the constant `true` literal,
	// allowing callers to short-circuit evaluation entirely.
	IsLiteralTrue() bool
	// Raw returns the original guard source text (for round-tripping and
	// error messages).
	Raw() string
}

// trueGuard is the default guard for nodes with no `if` attribute.
type trueGuard struct{}

func (trueGuard) Eval(func(string) (value.Value, bool, error)) (bool, error) { return true, nil }
func (trueGuard) IsLiteralTrue() bool                                        { return true }
func (trueGuard) Raw() string                                                { return "true" }

// AlwaysTrue is the shared default guard instance.
var AlwaysTrue Guard = trueGuard{}

// Node is a single element of a parsed script tree.
type Node struct {
	Kind     Kind
	Loc      Location
	Val      value.Value
	Guard    Guard
	Parent   *Node
	Children []*Node
	Script   *Script

	// attrs holds attribute values by name.
	attrs map[string]value.Value
	// attrOrder preserves declaration order for round-tripping.
	attrOrder []string
}

// NewNode constructs a Node with the default (always-true) guard.
func NewNode(kind Kind, loc Location) *Node {
	return &Node{
		Kind:  kind,
		Loc:   loc,
		Guard: AlwaysTrue,
		attrs: make(map[string]value.Value),
	}
}

// SetAttr sets an attribute, recording its position in AttrOrder the first
// time the key is seen.
func (n *Node) SetAttr(key string, v value.Value) {
	if n.attrs == nil {
		n.attrs = make(map[string]value.Value)
	}
	if _, ok := n.attrs[key]; !ok {
		n.attrOrder = append(n.attrOrder, key)
	}
	n.attrs[key] = v
}

// Attr returns the named attribute and whether it was present.
func (n *Node) Attr(key string) (value.Value, bool) {
	v, ok := n.attrs[key]
	return v, ok
}

// AttrString returns the named attribute's string form, or def if absent or
// unconvertible.
func (n *Node) AttrString(key, def string) string {
	v, ok := n.attrs[key]
	if !ok {
		return def
	}
	s, err := v.AsString()
	if err != nil {
		return def
	}
	return s
}

// AttrBool returns the named attribute's boolean form, or def if absent or
// unconvertible.
func (n *Node) AttrBool(key string, def bool) bool {
	v, ok := n.attrs[key]
	if !ok {
		return def
	}
	b, err := v.AsBoolean()
	if err != nil {
		return def
	}
	return b
}

// AttrInt returns the named attribute's integer form, or def if absent or
// unconvertible.
func (n *Node) AttrInt(key string, def int) int {
	v, ok := n.attrs[key]
	if !ok {
		return def
	}
	i, err := v.AsInt()
	if err != nil {
		return def
	}
	return i
}

// AttrOrder returns the attribute keys in declaration order.
func (n *Node) AttrOrder() []string {
	return n.attrOrder
}

// AppendChild appends c to n's children and sets c's parent back-reference.
func (n *Node) AppendChild(c *Node) {
	c.Parent = n
	c.Script = n.Script
	n.Children = append(n.Children, c)
}

// ID returns the node's "id" attribute, the conventional input/preset
// identifier.
func (n *Node) ID() string {
	return n.AttrString("id", "")
}

// Method is a named, reusable subtree declared under <methods>.
type Method struct {
	Name string
	Body *Node
}

// Script is an immutable parsed document: an absolute path, a mapping of
// declared methods, the root Node, and a reference to the Loader used to
// resolve sibling scripts (via SOURCE/EXEC).
type Script struct {
	Path    string
	Root    *Node
	Methods map[string]*Node
	Loader  ScriptLoader
}

// ScriptLoader resolves a script path (relative to a calling script's
// directory) to a parsed, cached Script. Implemented by xmlscript.Loader;
// declared here (rather than imported) to avoid a dependency cycle between
// ast and xmlscript.
type ScriptLoader interface {
	Load(path string) (*Script, error)
}
