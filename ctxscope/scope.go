package ctxscope

import (
	"fmt"
	"strings"

	"github.com/helidon-io/archetype-engine/exprlang"
	"github.com/helidon-io/archetype-engine/value"
)

// ConflictError reports a visibility or read-only-value conflict detected
// while materializing or writing to a scope.
type ConflictError struct {
	Path string
	Msg  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("context scope %q: %s", e.Path, e.Msg)
}

// Scope is one node of the context tree. The root scope has no id and no
// parent. Every other scope is addressed by the dotted chain of ids from
// the root; GLOBAL-visibility scopes are additionally discoverable from
// any descendant via breadth-first search.
type Scope struct {
	id     string
	parent *Scope
	root   *Scope
	vis    Visibility

	children    map[string]*Scope
	childOrder  []string
	values      map[string]ContextValue
	valueOrder  []string
}

// NewRoot creates a fresh, empty root scope. The root is always GLOBAL: it
// is the ancestor of every scope in the tree, and a value seeded at the
// root (e.g. "project.name") must be visible everywhere without being
// explicitly promoted.
func NewRoot() *Scope {
	s := newScope("", nil)
	s.root = s
	s.vis = VisGlobal
	return s
}

func newScope(id string, parent *Scope) *Scope {
	s := &Scope{
		id:       id,
		parent:   parent,
		children: make(map[string]*Scope),
		values:   make(map[string]ContextValue),
	}
	if parent != nil {
		s.root = parent.root
	}
	return s
}

// ID is this scope's own path segment ("" for the root).
func (s *Scope) ID() string { return s.id }

// Parent is the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Root is the scope tree's root.
func (s *Scope) Root() *Scope { return s.root }

// Visibility returns this scope's current visibility.
func (s *Scope) Visibility() Visibility { return s.vis }

// Path renders the chain of ids from the root to this scope, dot-joined.
// When internal is false, any GLOBAL-visibility ancestor (not counting this
// scope itself) is elided: the "effective" path a user would recognize.
func (s *Scope) Path(internal bool) string {
	var chain []*Scope
	for cur := s; cur != nil && cur.parent != nil; cur = cur.parent {
		chain = append([]*Scope{cur}, chain...)
	}
	var segs []string
	for i, cur := range chain {
		isSelf := i == len(chain)-1
		if !internal && !isSelf && cur.vis == VisGlobal {
			continue
		}
		segs = append(segs, cur.id)
	}
	return strings.Join(segs, ".")
}

func (s *Scope) setVisibility(v Visibility) error {
	if s.vis == VisUnset {
		s.vis = v
		return nil
	}
	if s.vis == v {
		return nil
	}
	return &ConflictError{Path: s.Path(true), Msg: fmt.Sprintf("scope already %s, cannot become %s", s.vis, v)}
}

// resolveBase returns the scope the path's reference operators start
// from (root for an absolute path, s for a relative one), then climbs
// p.Up() parents.
func (s *Scope) resolveBase(p *ContextPath) (*Scope, error) {
	cur := s
	if p.Absolute() {
		cur = s.root
	}
	for i := 0; i < p.Up(); i++ {
		if cur.parent == nil {
			return nil, &ConflictError{Path: p.String(), Msg: "PARENT climbs above the root scope"}
		}
		cur = cur.parent
	}
	return cur, nil
}

// GetOrCreate materializes the scope addressed by p, creating any missing
// segments as VisUnset scopes. Only the final (target) scope's visibility
// is fixed by global: true promotes it to GLOBAL, false to LOCAL; repeating
// the same call is idempotent, but contradicting an already-fixed
// visibility returns a ConflictError. A path with no segments (bare ROOT or
// PARENT[.PARENT]*) returns the scope reached by the reference operators
// themselves.
func (s *Scope) GetOrCreate(p *ContextPath, global bool) (*Scope, error) {
	cur, err := s.resolveBase(p)
	if err != nil {
		return nil, err
	}
	for _, seg := range p.Segments() {
		next, ok := cur.children[seg]
		if !ok {
			next = newScope(seg, cur)
			cur.children[seg] = next
			cur.childOrder = append(cur.childOrder, seg)
		}
		cur = next
	}
	want := VisLocal
	if global {
		want = VisGlobal
	}
	if err := cur.setVisibility(want); err != nil {
		return nil, err
	}
	return cur, nil
}

// Materialize creates the scope addressed by p like GetOrCreate, but never
// fixes visibility: newly created scopes (including the target) stay UNSET.
// Used for caller-seeded values (external presets, engine seeds like
// "current.date"), where the GLOBAL/LOCAL decision belongs to the input
// declaration that later claims the scope, not to the seeding caller.
func (s *Scope) Materialize(p *ContextPath) (*Scope, error) {
	cur, err := s.resolveBase(p)
	if err != nil {
		return nil, err
	}
	for _, seg := range p.Segments() {
		next, ok := cur.children[seg]
		if !ok {
			next = newScope(seg, cur)
			cur.children[seg] = next
			cur.childOrder = append(cur.childOrder, seg)
		}
		cur = next
	}
	return cur, nil
}

// Reach resolves the scope addressed by p without creating or fixing
// visibility on anything, returning (nil, false) if any segment along the
// way is missing. It lets a caller find a scope that may or may not already
// exist without creating it and without risking a visibility ConflictError.
func (s *Scope) Reach(p *ContextPath) (*Scope, bool) {
	cur, err := s.resolveBase(p)
	if err != nil {
		return nil, false
	}
	for _, seg := range p.Segments() {
		next, ok := cur.children[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// PutValue writes a single value at this scope under a bare key (no dots).
// If an existing entry is read-only (EXTERNAL/PRESET), the write is allowed
// only when the new value is canonically equal (value.Value.Equal) to the
// existing one; otherwise it's a ConflictError. A DEFAULT entry may always
// be overwritten (most commonly promoted to USER).
func (s *Scope) PutValue(key string, v value.Value, kind ValueKind) error {
	if strings.Contains(key, ".") {
		return &ConflictError{Path: s.Path(true) + "." + key, Msg: "PutValue key must not contain '.'"}
	}
	if existing, ok := s.values[key]; ok && existing.ReadOnly() {
		eq, err := existing.Value.Equal(v)
		if err != nil {
			return err
		}
		if !eq {
			return &ConflictError{
				Path: s.Path(true) + "." + key,
				Msg:  fmt.Sprintf("%s value %q cannot be overwritten with a different value", existing.Kind, existing.Value),
			}
		}
		return nil
	}
	if _, ok := s.values[key]; !ok {
		s.valueOrder = append(s.valueOrder, key)
	}
	s.values[key] = ContextValue{Value: v, Kind: kind}
	return nil
}

// GetValue resolves p to a value: walk to the
// scope addressed by all but the last segment (without creating anything;
// a missing intermediate scope is simply "not found"), then look up the
// last segment as a key: first locally, then, if this scope (or its
// parent) is GLOBAL, by breadth-first search through GLOBAL-visibility
// descendant scopes.
func (s *Scope) GetValue(p *ContextPath) (value.Value, bool, error) {
	cur, err := s.resolveBase(p)
	if err != nil {
		return value.Nil, false, err
	}
	segs := p.Segments()
	if len(segs) == 0 {
		return value.Nil, false, &ConflictError{Path: p.String(), Msg: "path does not address a value"}
	}
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.children[seg]
		if !ok {
			return value.Nil, false, nil
		}
		cur = next
	}
	key := segs[len(segs)-1]
	return lookupValue(cur, key)
}

func lookupValue(scope *Scope, key string) (value.Value, bool, error) {
	if cv, ok := scope.values[key]; ok {
		return cv.Value, true, nil
	}
	if scope.vis == VisGlobal || (scope.parent != nil && scope.parent.vis == VisGlobal) {
		if v, ok := bfsGlobalChildren(scope, key); ok {
			return v, true, nil
		}
	}
	return value.Nil, false, nil
}

// bfsGlobalChildren does a deterministic (child-creation-order) breadth-
// first search of scope's descendants and returns the first value found
// under key. Only GLOBAL-visibility scopes participate, for probing and
// for descent alike: a value under a LOCAL (or UNSET) child keeps that
// child's id in its effective path, so a bare key must never reach it.
func bfsGlobalChildren(scope *Scope, key string) (value.Value, bool) {
	queue := childrenInOrder(scope)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c.vis != VisGlobal {
			continue
		}
		if cv, ok := c.values[key]; ok {
			return cv.Value, true
		}
		queue = append(queue, childrenInOrder(c)...)
	}
	return value.Nil, false
}

func childrenInOrder(s *Scope) []*Scope {
	out := make([]*Scope, 0, len(s.childOrder))
	for _, id := range s.childOrder {
		out = append(out, s.children[id])
	}
	return out
}

// Lookup adapts GetValue to exprlang.Lookup / ast.Guard's function shape,
// parsing path with the same ContextPath grammar used everywhere else.
func (s *Scope) Lookup(path string) (value.Value, bool, error) {
	p, err := ParsePath(path)
	if err != nil {
		return value.Nil, false, err
	}
	return s.GetValue(p)
}

// Interpolate expands a `${...}` template against this scope. It's a thin
// wrapper binding exprlang.Interpolate to s.Lookup.
func (s *Scope) Interpolate(template string) (string, error) {
	return exprlang.Interpolate(template, exprlang.Lookup(s.Lookup))
}
