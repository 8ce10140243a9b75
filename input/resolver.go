// Package input implements the input-resolving visitor: for every declared
// input/preset/variable node it materializes a context scope, resolves a
// value (from an existing external/preset entry, a computed default, or a
// prompt), validates it, and decides whether the walker should descend into
// the node's subtree.
package input

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/helidon-io/archetype-engine/ast"
	"github.com/helidon-io/archetype-engine/ctxscope"
	"github.com/helidon-io/archetype-engine/value"
	"github.com/helidon-io/archetype-engine/walker"
)

// Options configures an InputResolver.
type Options struct {
	// SkipOptional, when true, never prompts for an optional input even in
	// interactive mode: it is resolved the same way BatchResolver would.
	SkipOptional bool
	// FailOnUnresolvedInput, when false, resolves an unanswerable required
	// input to its typed zero value instead of raising UnresolvedError.
	FailOnUnresolvedInput bool
	// ExternalDefaults maps an input's effective path (Scope.Path(false))
	// to a caller-supplied default, consulted before input.attr("default").
	ExternalDefaults map[string]string
}

// InputResolver is the input-resolving visitor. Constructed via NewBatch for
// non-interactive resolution (an unanswerable required input fails) or
// NewInteractive to prompt through a Prompter.
type InputResolver struct {
	prompter Prompter
	opts     Options

	// resolvedByScope records the value resolved for an enum/list input's
	// scope, so that a later Visit of its <option> children can decide
	// whether each option is selected.
	resolvedByScope map[*ctxscope.Scope]value.Value
	// pushed marks every scope this resolver pushed, so PostVisit knows to
	// pop it regardless of which kind of node it was pushed for.
	pushed map[*ast.Node]bool
}

// NewBatch returns an InputResolver with no Prompter: any input that cannot
// be resolved from an existing value, a default, or auto-resolution fails
// (or falls back to its typed zero, per Options.FailOnUnresolvedInput).
func NewBatch(opts Options) *InputResolver {
	return &InputResolver{
		opts:            opts,
		resolvedByScope: make(map[*ctxscope.Scope]value.Value),
		pushed:          make(map[*ast.Node]bool),
	}
}

// NewInteractive returns an InputResolver that prompts p for any input it
// cannot otherwise resolve.
func NewInteractive(p Prompter, opts Options) *InputResolver {
	r := NewBatch(opts)
	r.prompter = p
	return r
}

// Visit implements walker.NodeVisitor.
func (r *InputResolver) Visit(w *walker.Walker, n *ast.Node) (walker.VisitResult, error) {
	switch {
	case n.Kind.IsInput():
		return r.resolveInput(w, n)
	case n.Kind.IsPreset():
		return r.resolveAssignment(w, n, ctxscope.KindPreset)
	case n.Kind.IsVariable():
		return r.resolveAssignment(w, n, ctxscope.KindLocalVar)
	case n.Kind == ast.KindOption:
		return r.visitOption(w, n)
	default:
		return walker.Continue, nil
	}
}

// PostVisit implements walker.NodeVisitor.
func (r *InputResolver) PostVisit(w *walker.Walker, n *ast.Node) error {
	if r.pushed[n] {
		delete(r.pushed, n)
		w.PopScope()
	}
	return nil
}

func (r *InputResolver) resolveInput(w *walker.Walker, n *ast.Node) (walker.VisitResult, error) {
	parent := w.CurrentScope()
	p, err := ctxscope.ParsePath(n.ID())
	if err != nil {
		return walker.Continue, err
	}
	global := n.AttrBool("global", false)
	scope, err := parent.GetOrCreate(p, global)
	if err != nil {
		return walker.Continue, err
	}
	w.PushScope(scope)
	r.pushed[n] = true

	last := lastSegment(p)
	kindStr := declType(n.Kind)
	optional := n.AttrBool("optional", false)

	if existing, found, err := parent.GetValue(p); err != nil {
		return walker.Continue, err
	} else if found {
		resolved, err := finalizeExisting(scope, existing)
		if err != nil {
			return walker.Continue, err
		}
		if err := r.validate(n, kindStr, resolved); err != nil {
			return walker.Continue, err
		}
		r.resolvedByScope[scope] = resolved
		return traversalFor(kindStr, resolved), nil
	}

	effectiveOptions := effectiveOptions(w, n)

	if kindStr == "list" && len(effectiveOptions) == 0 {
		resolved := value.NewList(nil)
		if err := scope.Parent().PutValue(last, resolved, ctxscope.KindDefault); err != nil {
			return walker.Continue, err
		}
		r.resolvedByScope[scope] = resolved
		return traversalFor(kindStr, resolved), nil
	}

	defaultRaw := r.computeDefault(n, scope)

	if kindStr == "enum" && len(effectiveOptions) == 1 && strings.EqualFold(effectiveOptions[0], defaultRaw) {
		resolved := value.NewString(strings.ToLower(effectiveOptions[0]))
		if err := scope.Parent().PutValue(last, resolved, ctxscope.KindDefault); err != nil {
			return walker.Continue, err
		}
		r.resolvedByScope[scope] = resolved
		return traversalFor(kindStr, resolved), nil
	}

	useInteractive := r.prompter != nil && !(optional && r.opts.SkipOptional)

	var resolved value.Value
	var putKind ctxscope.ValueKind
	if useInteractive {
		resolved, putKind, err = r.interactiveResolve(n, kindStr, defaultRaw, effectiveOptions)
	} else {
		resolved, putKind, err = r.batchResolve(n, kindStr, defaultRaw, optional)
	}
	if err != nil {
		return walker.Continue, err
	}
	if putKind == ctxscope.KindUser {
		if eq, err := resolved.Equal(valueFromRaw(kindStr, defaultRaw)); err == nil && eq {
			putKind = ctxscope.KindDefault
		}
	}
	if err := scope.Parent().PutValue(last, resolved, putKind); err != nil {
		return walker.Continue, err
	}
	if err := r.validate(n, kindStr, resolved); err != nil {
		return walker.Continue, err
	}
	r.resolvedByScope[scope] = resolved
	return traversalFor(kindStr, resolved), nil
}

func (r *InputResolver) resolveAssignment(w *walker.Walker, n *ast.Node, kind ctxscope.ValueKind) (walker.VisitResult, error) {
	parent := w.CurrentScope()
	p, err := ctxscope.ParsePath(n.ID())
	if err != nil {
		return walker.Continue, err
	}
	global := n.AttrBool("global", false)
	scope, err := parent.GetOrCreate(p, global)
	if err != nil {
		return walker.Continue, err
	}
	w.PushScope(scope)
	r.pushed[n] = true

	raw := n.AttrString("value", n.AttrString("default", ""))
	kindStr := declType(n.Kind)
	interpolated, err := interpolateRaw(scope, kindStr, raw)
	if err != nil {
		return walker.Continue, err
	}
	last := lastSegment(p)
	if err := scope.Parent().PutValue(last, interpolated, kind); err != nil {
		return walker.Continue, err
	}
	r.resolvedByScope[scope] = interpolated
	return walker.Continue, nil
}

func (r *InputResolver) visitOption(w *walker.Walker, n *ast.Node) (walker.VisitResult, error) {
	resolved, ok := r.resolvedByScope[w.CurrentScope()]
	if !ok {
		return walker.SkipSubtree, nil
	}
	optVal := n.AttrString("value", "")
	if resolved.Kind() == value.List {
		items, _ := resolved.AsList()
		for _, it := range items {
			if strings.EqualFold(it, optVal) {
				return walker.Continue, nil
			}
		}
		return walker.SkipSubtree, nil
	}
	s, _ := resolved.AsString()
	if strings.EqualFold(s, optVal) {
		return walker.Continue, nil
	}
	return walker.SkipSubtree, nil
}

// batchResolve decides a value without prompting: an optional input takes
// its default (or typed zero for boolean/list); a required one is an error
// unless FailOnUnresolvedInput is off.
func (r *InputResolver) batchResolve(n *ast.Node, kindStr, defaultRaw string, optional bool) (value.Value, ctxscope.ValueKind, error) {
	if optional && defaultRaw != "" {
		return valueFromRaw(kindStr, defaultRaw), ctxscope.KindDefault, nil
	}
	if optional && (kindStr == "boolean" || kindStr == "list") {
		return valueFromRaw(kindStr, zeroFor(kindStr)), ctxscope.KindDefault, nil
	}
	if !r.opts.FailOnUnresolvedInput {
		return valueFromRaw(kindStr, zeroFor(kindStr)), ctxscope.KindDefault, nil
	}
	return value.Nil, 0, &UnresolvedError{ID: n.ID()}
}

// interactiveResolve prompts, parses, and re-prompts on an invalid
// response until the answer parses.
func (r *InputResolver) interactiveResolve(n *ast.Node, kindStr, defaultRaw string, options []string) (value.Value, ctxscope.ValueKind, error) {
	p := Prompt{
		ID:      n.ID(),
		Text:    n.AttrString("prompt", n.ID()),
		Help:    n.AttrString("help", ""),
		Default: defaultRaw,
		Options: options,
	}
	for {
		raw, err := r.prompter.Prompt(p)
		if err != nil {
			return value.Nil, 0, err
		}
		raw = strings.TrimSpace(raw)
		v, usedDefault, ok := parseResponse(kindStr, raw, defaultRaw, options)
		if !ok {
			continue
		}
		kind := ctxscope.KindUser
		if usedDefault {
			kind = ctxscope.KindDefault
		}
		return v, kind, nil
	}
}

func (r *InputResolver) computeDefault(n *ast.Node, scope *ctxscope.Scope) string {
	if d, ok := r.opts.ExternalDefaults[scope.Path(false)]; ok {
		return d
	}
	return n.AttrString("default", zeroFor(declType(n.Kind)))
}

func (r *InputResolver) validate(n *ast.Node, kindStr string, resolved value.Value) error {
	switch kindStr {
	case "text":
		return validateText(n, resolved)
	case "enum":
		return validateChoice(n, resolved, false)
	case "list":
		return validateChoice(n, resolved, true)
	}
	return nil
}

func validateText(n *ast.Node, resolved value.Value) error {
	s, err := resolved.AsString()
	if err != nil {
		return err
	}
	var merr *multierror.Error
	for _, vnode := range collectValidations(n) {
		for _, rnode := range vnode.Children {
			if rnode.Kind != ast.KindRegex {
				continue
			}
			pattern := rnode.AttrString("pattern", "")
			re, err := regexp.Compile(pattern)
			if err != nil {
				merr = multierror.Append(merr, err)
				continue
			}
			if !re.MatchString(s) {
				msg := vnode.AttrString("message", fmt.Sprintf("must match %s", pattern))
				merr = multierror.Append(merr, fmt.Errorf("%s", msg))
			}
		}
	}
	if merr != nil && merr.Len() > 0 {
		return &ValidationError{ID: n.ID(), Err: merr}
	}
	return nil
}

func collectValidations(n *ast.Node) []*ast.Node {
	var out []*ast.Node
	for _, c := range n.Children {
		if c.Kind != ast.KindValidations {
			continue
		}
		for _, v := range c.Children {
			if v.Kind == ast.KindValidation {
				out = append(out, v)
			}
		}
	}
	return out
}

func validateChoice(n *ast.Node, resolved value.Value, isList bool) error {
	opts := make(map[string]bool)
	for _, c := range n.Children {
		if c.Kind != ast.KindOption {
			continue
		}
		opts[strings.ToLower(c.AttrString("value", ""))] = true
	}
	if len(opts) == 0 {
		return nil
	}
	if isList {
		items, err := resolved.AsList()
		if err != nil {
			return err
		}
		for _, it := range items {
			if !opts[strings.ToLower(it)] {
				return &InvalidError{ID: n.ID(), Value: it}
			}
		}
		return nil
	}
	s, err := resolved.AsString()
	if err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	if !opts[strings.ToLower(s)] {
		return &InvalidError{ID: n.ID(), Value: s}
	}
	return nil
}

// effectiveOptions filters n's <option> children by guard, against the
// current (just-pushed) scope.
func effectiveOptions(w *walker.Walker, n *ast.Node) []string {
	var out []string
	for _, c := range n.Children {
		if c.Kind != ast.KindOption {
			continue
		}
		ok, err := c.Guard.Eval(w.CurrentScope().Lookup)
		if err != nil || !ok {
			continue
		}
		out = append(out, c.AttrString("value", ""))
	}
	return out
}

func traversalFor(kindStr string, v value.Value) walker.VisitResult {
	switch kindStr {
	case "boolean":
		b, _ := v.AsBoolean()
		if b {
			return walker.Continue
		}
		return walker.SkipSubtree
	case "list":
		l, _ := v.AsList()
		if len(l) > 0 {
			return walker.Continue
		}
		return walker.SkipSubtree
	default:
		return walker.Continue
	}
}

func finalizeExisting(scope *ctxscope.Scope, v value.Value) (value.Value, error) {
	if v.Kind() != value.String {
		return v, nil
	}
	s, err := v.AsString()
	if err != nil {
		return value.Nil, err
	}
	out, err := scope.Interpolate(s)
	if err != nil {
		return value.Nil, err
	}
	return value.NewString(out), nil
}

func interpolateRaw(scope *ctxscope.Scope, kindStr, raw string) (value.Value, error) {
	switch kindStr {
	case "boolean":
		s, err := scope.Interpolate(raw)
		if err != nil {
			return value.Nil, err
		}
		b, err := value.ParseBool(s, true)
		if err != nil {
			return value.Nil, err
		}
		return value.NewBool(b), nil
	case "list":
		var out []string
		for _, tok := range strings.Fields(raw) {
			s, err := scope.Interpolate(tok)
			if err != nil {
				return value.Nil, err
			}
			out = append(out, s)
		}
		return value.NewList(out), nil
	default:
		s, err := scope.Interpolate(raw)
		if err != nil {
			return value.Nil, err
		}
		return value.NewString(s), nil
	}
}

// parseResponse applies the per-kind response grammar. The
// second return value reports whether the default was accepted (empty
// response), used to decide USER vs DEFAULT provenance; the third reports
// whether the response parsed at all (false triggers a re-prompt).
func parseResponse(kindStr, raw, defaultRaw string, options []string) (value.Value, bool, bool) {
	switch kindStr {
	case "boolean":
		if raw == "" {
			b, _ := value.ParseBool(defaultRaw, false)
			return value.NewBool(b), true, true
		}
		b, err := value.ParseBool(raw, true)
		if err != nil {
			return value.Nil, false, false
		}
		return value.NewBool(b), false, true
	case "text":
		if raw == "" {
			return value.NewString(defaultRaw), true, true
		}
		return value.NewString(raw), false, true
	case "enum":
		if raw == "" {
			return value.NewString(defaultRaw), true, true
		}
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 1 || idx > len(options) {
			return value.Nil, false, false
		}
		return value.NewString(strings.ToLower(options[idx-1])), false, true
	case "list":
		if raw == "" || strings.EqualFold(raw, "none") {
			return value.NewList(nil), raw == "", true
		}
		var chosen []string
		for _, tok := range strings.Fields(raw) {
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 1 || idx > len(options) {
				return value.Nil, false, false
			}
			chosen = append(chosen, strings.ToLower(options[idx-1]))
		}
		return value.NewList(chosen), false, true
	default:
		return value.Nil, false, false
	}
}

func valueFromRaw(kindStr, raw string) value.Value {
	switch kindStr {
	case "boolean":
		b, _ := value.ParseBool(raw, false)
		return value.NewBool(b)
	case "list":
		if strings.TrimSpace(raw) == "" {
			return value.NewList(nil)
		}
		return value.NewList(strings.Fields(raw))
	default:
		return value.NewString(raw)
	}
}

func zeroFor(kindStr string) string {
	if kindStr == "boolean" {
		return "false"
	}
	return ""
}

// declType maps an INPUT_*/PRESET_*/VARIABLE_* kind to its simple type
// ("boolean", "text", "enum", "list"), independent of which of the three
// declaration families it belongs to.
func declType(k ast.Kind) string {
	switch k {
	case ast.KindInputBoolean, ast.KindPresetBoolean, ast.KindVariableBoolean:
		return "boolean"
	case ast.KindInputEnum, ast.KindPresetEnum, ast.KindVariableEnum:
		return "enum"
	case ast.KindInputList, ast.KindPresetList, ast.KindVariableList:
		return "list"
	default:
		return "text"
	}
}

func lastSegment(p *ctxscope.ContextPath) string {
	segs := p.Segments()
	return segs[len(segs)-1]
}
