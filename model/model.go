// Package model implements the second-pass merged-model builder: a visitor
// that walks the resolved script tree and accumulates <value>/<list>/<map>
// nodes under a virtual root, applying the merge rules (map deep-merge,
// list concatenation, order/override precedence on value conflicts) as it
// goes. Template engines consume the resulting tree.
package model

import (
	"fmt"
	"io/fs"
	"sort"

	"github.com/helidon-io/archetype-engine/ast"
	"github.com/helidon-io/archetype-engine/walker"
)

// Kind is the closed set of merged-model node projections.
type Kind int

const (
	KindValue Kind = iota
	KindList
	KindMap
)

// Node is one entry of the merged model tree. A Map node's Children/
// childOrder hold its keyed entries; a List node's Items holds its
// (unkeyed, positional) elements; a Value node carries its resolved
// content.
type Node struct {
	Kind     Kind
	Order    int
	Override bool

	// Content is the Value node's text. When Engine is empty, Content has
	// already been interpolated against the context. When Engine is
	// non-empty, Content is the raw, uninterpolated source and rendering
	// (including interpolation) is deferred to the named template engine at
	// output time.
	Content string
	Engine  string

	Children   map[string]*Node
	childOrder []string

	Items []*Node
}

// NewRoot returns an empty virtual root (a Map), the accumulation target
// for every <model> block across an archetype.
func NewRoot() *Node {
	return &Node{Kind: KindMap, Children: make(map[string]*Node)}
}

// Get returns the Map node's child at key, if any.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != KindMap {
		return nil, false
	}
	c, ok := n.Children[key]
	return c, ok
}

// Keys returns a Map node's keys in first-seen declaration order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindMap {
		return nil
	}
	out := make([]string, len(n.childOrder))
	copy(out, n.childOrder)
	return out
}

// Finalize recursively stable-sorts every List node's Items by Order
// descending. Call once after the full tree has been walked and before
// handing the model to a template engine.
func (n *Node) Finalize() {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindMap:
		for _, k := range n.childOrder {
			n.Children[k].Finalize()
		}
	case KindList:
		sort.SliceStable(n.Items, func(i, j int) bool { return n.Items[i].Order > n.Items[j].Order })
		for _, it := range n.Items {
			it.Finalize()
		}
	}
}

// putValue inserts or resolves a conflict for a value leaf under key in a
// Map node: the higher `order` wins; the incumbent wins a tie unless the
// incoming entry carries `override=true`. A kind mismatch at the same key
// (e.g. a <value> and a <list> sharing a key) falls back to the same
// precedence rather than erroring.
func (n *Node) putValue(key string, incoming *Node) {
	existing, ok := n.Children[key]
	if !ok {
		n.Children[key] = incoming
		n.childOrder = append(n.childOrder, key)
		return
	}
	n.Children[key] = resolveConflict(existing, incoming)
}

func resolveConflict(existing, incoming *Node) *Node {
	if incoming.Order > existing.Order {
		return incoming
	}
	if incoming.Order == existing.Order && incoming.Override {
		return incoming
	}
	return existing
}

// Resolver is the model-building visitor: it accumulates model nodes
// encountered during a walk into Root(), respecting guards (already
// enforced by the walker before Visit is ever called) and nesting
// (MODEL_MAP/MODEL_LIST push a container that subsequent MODEL_* children
// attach to, popped again in PostVisit).
type Resolver struct {
	fsys  fs.FS
	root  *Node
	stack []*Node

	// templateDepth counts enclosing TEMPLATE nodes. A <model> nested inside
	// a <template> is that directive's private extraScope, built
	// separately by the OutputGenerator at render time; it must not leak into
	// the archetype-wide merged model. Depth tracking (rather than relying on
	// the SkipSubtree returned for the TEMPLATE node) keeps the exclusion
	// correct even when this resolver runs as a non-primary visitor whose
	// VisitResult the walker ignores.
	templateDepth int
}

// NewResolver returns a Resolver that reads MODEL_VALUE `file` attributes
// relative to the walker's current directory, from fsys (the archetype's
// script root).
func NewResolver(fsys fs.FS) *Resolver {
	root := NewRoot()
	return &Resolver{fsys: fsys, root: root, stack: []*Node{root}}
}

// Model returns the accumulated merged model. Call Finalize on it once the
// walk is complete.
func (r *Resolver) Model() *Node { return r.root }

// Visit implements walker.NodeVisitor.
func (r *Resolver) Visit(w *walker.Walker, n *ast.Node) (walker.VisitResult, error) {
	switch n.Kind {
	case ast.KindTemplate:
		r.templateDepth++
		return walker.SkipSubtree, nil
	case ast.KindModel:
		// The virtual root already exists; <model> is just a grouping
		// element, so its MODEL_* children attach directly to r.root.
		return walker.Continue, nil
	case ast.KindModelMap:
		if r.templateDepth > 0 {
			return walker.Continue, nil
		}
		container, err := r.enterContainer(n, KindMap, func() *Node {
			return &Node{Kind: KindMap, Children: make(map[string]*Node), Order: orderOf(n), Override: n.AttrBool("override", false)}
		})
		if err != nil {
			return walker.Continue, err
		}
		r.stack = append(r.stack, container)
		return walker.Continue, nil
	case ast.KindModelList:
		if r.templateDepth > 0 {
			return walker.Continue, nil
		}
		container, err := r.enterContainer(n, KindList, func() *Node {
			return &Node{Kind: KindList, Order: orderOf(n), Override: n.AttrBool("override", false)}
		})
		if err != nil {
			return walker.Continue, err
		}
		r.stack = append(r.stack, container)
		return walker.Continue, nil
	case ast.KindModelValue:
		if r.templateDepth > 0 {
			return walker.Continue, nil
		}
		content, engine, err := r.resolveContent(w, n)
		if err != nil {
			return walker.Continue, err
		}
		leaf := &Node{
			Kind:     KindValue,
			Order:    orderOf(n),
			Override: n.AttrBool("override", false),
			Content:  content,
			Engine:   engine,
		}
		if err := r.attachValue(n, leaf); err != nil {
			return walker.Continue, err
		}
		return walker.Continue, nil
	default:
		return walker.Continue, nil
	}
}

// PostVisit implements walker.NodeVisitor.
func (r *Resolver) PostVisit(w *walker.Walker, n *ast.Node) error {
	switch n.Kind {
	case ast.KindTemplate:
		r.templateDepth--
	case ast.KindModelMap, ast.KindModelList:
		if r.templateDepth == 0 {
			r.stack = r.stack[:len(r.stack)-1]
		}
	}
	return nil
}

// enterContainer returns the Map/List node that n's own children should
// attach to, pushing it as the new top of the stack. A map/list sharing an
// already-populated key of the same kind is reused in place (not copied),
// so "deep-merge child by child" (map) and "concatenate" (list) fall out
// naturally as the subtree's children attach to the pre-existing container
// one by one, rather than needing a separate post-hoc merge step over two
// fully-built trees. A kind mismatch at the same key is resolved by the
// same order/override precedence putValue uses for VALUE conflicts: the
// loser's subtree is still walked (so guard side effects and nested walks
// behave normally) but attaches to a scratch container that is discarded.
func (r *Resolver) enterContainer(n *ast.Node, kind Kind, makeNode func() *Node) (*Node, error) {
	top := r.stack[len(r.stack)-1]
	switch top.Kind {
	case KindMap:
		key := n.AttrString("key", "")
		if key == "" {
			return nil, fmt.Errorf("model: %s: %s requires a key attribute inside a map", n.Loc, n.Kind)
		}
		if existing, ok := top.Children[key]; ok {
			if existing.Kind == kind {
				return existing, nil
			}
			incoming := makeNode()
			if incoming.Order > existing.Order || (incoming.Order == existing.Order && incoming.Override) {
				top.Children[key] = incoming
				return incoming, nil
			}
			return makeNode(), nil // scratch: discarded, existing keeps its slot
		}
		child := makeNode()
		top.Children[key] = child
		top.childOrder = append(top.childOrder, key)
		return child, nil
	case KindList:
		child := makeNode()
		top.Items = append(top.Items, child)
		return child, nil
	default:
		return nil, fmt.Errorf("model: %s: cannot nest %s inside a value", n.Loc, n.Kind)
	}
}

// attachValue places a fully-resolved VALUE leaf into the container
// currently at the top of the stack: a Map container attaches by the
// node's `key` attribute (resolving order/override conflicts via
// putValue); a List container simply appends, since list elements are
// positional, not keyed.
func (r *Resolver) attachValue(n *ast.Node, leaf *Node) error {
	top := r.stack[len(r.stack)-1]
	switch top.Kind {
	case KindMap:
		key := n.AttrString("key", "")
		if key == "" {
			return fmt.Errorf("model: %s: value requires a key attribute inside a map", n.Loc)
		}
		top.putValue(key, leaf)
		return nil
	case KindList:
		top.Items = append(top.Items, leaf)
		return nil
	default:
		return fmt.Errorf("model: %s: cannot attach a value to a value container", n.Loc)
	}
}

// resolveContent picks the value's content source: a `file` attribute
// (read relative to cwd) or the node's own text; eager-interpolated unless
// a `template` engine name defers it to render time.
func (r *Resolver) resolveContent(w *walker.Walker, n *ast.Node) (content, engine string, err error) {
	var raw string
	if file := n.AttrString("file", ""); file != "" {
		data, rerr := fs.ReadFile(r.fsys, walker.ResolvePath(w.Cwd(), file))
		if rerr != nil {
			return "", "", fmt.Errorf("model: %s: reading file %q: %w", n.Loc, file, rerr)
		}
		raw = string(data)
	} else {
		raw, _ = n.Val.AsString()
	}

	engine = n.AttrString("template", "")
	if engine != "" {
		return raw, engine, nil
	}
	out, ierr := w.CurrentScope().Interpolate(raw)
	if ierr != nil {
		return "", "", ierr
	}
	return out, "", nil
}

func orderOf(n *ast.Node) int {
	return n.AttrInt("order", 100)
}
