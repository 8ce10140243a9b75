// Package walker implements the depth-first script-tree traversal shared
// by every phase of the engine: a single walker dispatches to one or more
// NodeVisitor implementations (the input resolver during the input phase;
// the model resolver and output generator during the output phase),
// resolves source/exec/call invocations against a script loader, and wraps
// visitor failures in a synthesized invocation stack trace.
package walker

import (
	"fmt"
	"path"
	"strings"

	"github.com/helidon-io/archetype-engine/ast"
	"github.com/helidon-io/archetype-engine/ctxscope"
)

// VisitResult is returned by NodeVisitor.Visit to steer traversal.
type VisitResult int

const (
	// Continue visits the node's children, then its following siblings.
	Continue VisitResult = iota
	// SkipSubtree skips the node's children but visits following siblings.
	SkipSubtree
	// SkipSiblings visits the node's children, then skips any following
	// siblings at the same level ("unwinds to the enclosing block's end").
	SkipSiblings
	// Terminate stops the entire walk immediately.
	Terminate
)

func (r VisitResult) String() string {
	switch r {
	case SkipSubtree:
		return "SKIP_SUBTREE"
	case SkipSiblings:
		return "SKIP_SIBLINGS"
	case Terminate:
		return "TERMINATE"
	default:
		return "CONTINUE"
	}
}

// NodeVisitor is the single closed interface every specialized visitor
// (input resolver, model resolver, output generator) implements, examining
// node.Kind itself rather than requiring a per-kind dispatch table.
type NodeVisitor interface {
	Visit(w *Walker, n *ast.Node) (VisitResult, error)
	PostVisit(w *Walker, n *ast.Node) error
}

// Frame is one entry of the synthesized Invocation stack trace: the
// invocation site (a SOURCE/EXEC/CALL node) plus what it resolved to.
type Frame struct {
	Loc    ast.Location
	Verb   string // "source", "exec", or "call"
	Target string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s %s)", f.Loc, f.Verb, f.Target)
}

// InvocationError wraps any error raised while visiting a node with the
// call stack active at the time.
type InvocationError struct {
	Frames []Frame
	Node   ast.Location
	Cause  error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	b.WriteString("invocation error at ")
	b.WriteString(e.Node.String())
	b.WriteString(": ")
	b.WriteString(e.Cause.Error())
	for i := len(e.Frames) - 1; i >= 0; i-- {
		b.WriteString("\n\tat ")
		b.WriteString(e.Frames[i].String())
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error { return e.Cause }

// Walker performs the depth-first traversal described above. A Walker is
// single-use: construct one per call to Walk.
type Walker struct {
	loader ast.ScriptLoader

	callStack  []Frame
	scriptStk  []*ast.Script
	cwdStack   []string
	scopeStack []*ctxscope.Scope

	visitors []NodeVisitor
}

// New creates a Walker rooted at rootScript, with rootCwd as the initial
// working directory (used to resolve relative SOURCE/EXEC targets) and
// rootScope as the initial (and only) entry of the scope stack.
func New(loader ast.ScriptLoader, rootScript *ast.Script, rootCwd string, rootScope *ctxscope.Scope) *Walker {
	return &Walker{
		loader:     loader,
		scriptStk:  []*ast.Script{rootScript},
		cwdStack:   []string{rootCwd},
		scopeStack: []*ctxscope.Scope{rootScope},
	}
}

// Cwd returns the current working directory (top of the cwd stack).
func (w *Walker) Cwd() string {
	if len(w.cwdStack) == 0 {
		return ""
	}
	return w.cwdStack[len(w.cwdStack)-1]
}

// Loader returns the script loader the walker resolves SOURCE/EXEC/CALL
// targets against. Exposed so a visitor (e.g. the OutputGenerator
// rendering a TEMPLATE's own nested <model> subtree) can spin up a
// sub-walker over a node it has already reached, without the walker
// needing to know about model-building or output generation itself.
func (w *Walker) Loader() ast.ScriptLoader { return w.loader }

// CurrentScript returns the script at the top of the invocation stack
// (the script whose subtree is currently being visited).
func (w *Walker) CurrentScript() *ast.Script {
	return w.scriptStk[len(w.scriptStk)-1]
}

// ResolvePath resolves target against cwd using forward-slash fs.FS
// conventions: a leading '/' addresses the script root, otherwise target
// is relative to cwd. Exported so packages that read files relative to the
// walk's current directory (model's MODEL_VALUE `file`, output's FILE/
// FILES/TEMPLATE/TEMPLATES sources) share the walker's own resolution
// rule instead of reimplementing it.
func ResolvePath(cwd, target string) string {
	return resolvePath(cwd, target)
}

func (w *Walker) pushCwd(dir string) { w.cwdStack = append(w.cwdStack, dir) }
func (w *Walker) popCwd()            { w.cwdStack = w.cwdStack[:len(w.cwdStack)-1] }

// CurrentScope returns the scope at the top of the scope stack.
func (w *Walker) CurrentScope() *ctxscope.Scope {
	return w.scopeStack[len(w.scopeStack)-1]
}

// PushScope pushes s as the new current scope (used by InputResolver on
// entering an input's subtree).
func (w *Walker) PushScope(s *ctxscope.Scope) { w.scopeStack = append(w.scopeStack, s) }

// PopScope pops the current scope (used by InputResolver on leaving an
// input's subtree).
func (w *Walker) PopScope() { w.scopeStack = w.scopeStack[:len(w.scopeStack)-1] }

// CallStack returns the invocation frames currently active, outermost
// first.
func (w *Walker) CallStack() []Frame {
	out := make([]Frame, len(w.callStack))
	copy(out, w.callStack)
	return out
}

func (w *Walker) pushCall(f Frame) { w.callStack = append(w.callStack, f) }
func (w *Walker) popCall()         { w.callStack = w.callStack[:len(w.callStack)-1] }

// Walk runs the traversal over root with visitors; visitors[0] is the
// primary visitor whose VisitResult governs traversal and whose
// SKIP_SUBTREE/TERMINATE short-circuits the remaining (additional)
// visitors for that node.
func (w *Walker) Walk(root *ast.Node, visitors ...NodeVisitor) error {
	if len(visitors) == 0 {
		return nil
	}
	w.visitors = visitors
	_, err := w.walkNode(root)
	return err
}

func (w *Walker) walkNode(n *ast.Node) (VisitResult, error) {
	ok, err := w.evalGuard(n)
	if err != nil {
		return Continue, w.wrap(n, err)
	}
	if !ok {
		return Continue, nil
	}

	primary := Continue
	ran := make([]bool, len(w.visitors))
	for i, v := range w.visitors {
		r, err := v.Visit(w, n)
		if err != nil {
			return Continue, w.wrap(n, err)
		}
		ran[i] = true
		if i == 0 {
			primary = r
		}
		if primary == SkipSubtree || primary == Terminate {
			break
		}
	}

	if primary != SkipSubtree && primary != Terminate {
		childResult, err := w.walkInvocation(n)
		if err != nil {
			return Continue, err
		}
		if childResult == Terminate {
			primary = Terminate
		}
	}

	for i, v := range w.visitors {
		if ran[i] {
			if err := v.PostVisit(w, n); err != nil {
				return Continue, w.wrap(n, err)
			}
		}
	}
	return primary, nil
}

// walkInvocation visits n's children, unless n is itself a SOURCE/EXEC/CALL
// node, in which case it resolves the invocation target and visits that
// subtree instead.
func (w *Walker) walkInvocation(n *ast.Node) (VisitResult, error) {
	switch n.Kind {
	case ast.KindSource, ast.KindExec:
		return w.walkSourceOrExec(n)
	case ast.KindCall:
		return w.walkCall(n)
	default:
		return w.walkChildren(n.Children)
	}
}

func (w *Walker) walkSourceOrExec(n *ast.Node) (VisitResult, error) {
	target := n.AttrString("src", n.AttrString("url", ""))
	if target == "" {
		return Continue, w.wrap(n, fmt.Errorf("walker: missing src/url attribute"))
	}
	resolved := resolvePath(w.Cwd(), target)
	script, err := w.loader.Load(resolved)
	if err != nil {
		// A load/parse failure discovered mid-traversal surfaces through
		// this invocation site, so it carries Invocation frames like any
		// other visitor failure.
		return Continue, w.wrap(n, err)
	}

	verb := "source"
	if n.Kind == ast.KindExec {
		verb = "exec"
	}
	w.pushCall(Frame{Loc: n.Loc, Verb: verb, Target: resolved})
	defer w.popCall()

	w.scriptStk = append(w.scriptStk, script)
	defer func() { w.scriptStk = w.scriptStk[:len(w.scriptStk)-1] }()

	if n.Kind == ast.KindExec {
		w.pushCwd(path.Dir(resolved))
		defer w.popCwd()
	}

	return w.walkChildren([]*ast.Node{script.Root})
}

func (w *Walker) walkCall(n *ast.Node) (VisitResult, error) {
	method := n.AttrString("method", "")
	target := w.resolveMethod(method)
	if target == nil {
		return Continue, w.wrap(n, fmt.Errorf("walker: unknown method %q", method))
	}
	w.pushCall(Frame{Loc: n.Loc, Verb: "call", Target: method})
	defer w.popCall()
	return w.walkChildren(target.Children)
}

// resolveMethod looks up name in the innermost (most recently sourced/
// exec'd) script first, then walks outward: a later binding from a
// sourced/exec'd script shadows earlier ones.
func (w *Walker) resolveMethod(name string) *ast.Node {
	for i := len(w.scriptStk) - 1; i >= 0; i-- {
		if m, ok := w.scriptStk[i].Methods[name]; ok {
			return m
		}
	}
	return nil
}

func (w *Walker) walkChildren(children []*ast.Node) (VisitResult, error) {
	for _, c := range children {
		if c.Kind == ast.KindMethods {
			// <methods> is a declarative index only (already captured in
			// Script.Methods by the loader); it is never part of the normal
			// document-order walk, only reachable via CALL resolution.
			continue
		}
		r, err := w.walkNode(c)
		if err != nil {
			return Continue, err
		}
		switch r {
		case Terminate:
			return Terminate, nil
		case SkipSiblings:
			return Continue, nil
		}
	}
	return Continue, nil
}

func (w *Walker) evalGuard(n *ast.Node) (bool, error) {
	if n.Guard == nil || n.Guard.IsLiteralTrue() {
		return true, nil
	}
	return n.Guard.Eval(w.CurrentScope().Lookup)
}

func (w *Walker) wrap(n *ast.Node, err error) error {
	var ie *InvocationError
	if asInvocationError(err, &ie) {
		return err
	}
	return &InvocationError{Frames: w.CallStack(), Node: n.Loc, Cause: err}
}

func asInvocationError(err error, target **InvocationError) bool {
	ie, ok := err.(*InvocationError)
	if ok {
		*target = ie
	}
	return ok
}

// resolvePath resolves target against cwd using forward-slash fs.FS
// conventions: a leading '/' addresses the script root, otherwise target
// is relative to cwd.
func resolvePath(cwd, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return path.Clean(path.Join(cwd, target))
}
