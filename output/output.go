// Package output implements the output-generating visitor: it walks
// <output> subtrees after the merged model has been built and copies or
// renders file/files/template/templates directives into a Sink, rewriting
// relative target paths through any referenced transformation's replace
// operations.
package output

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/helidon-io/archetype-engine/ast"
	"github.com/helidon-io/archetype-engine/ctxscope"
	"github.com/helidon-io/archetype-engine/model"
	"github.com/helidon-io/archetype-engine/walker"
)

// Sink receives generated output. DirSink is the concrete filesystem
// implementation; tests may substitute an in-memory one.
type Sink interface {
	// WriteFile writes data at relPath (forward-slash, relative to the
	// sink's root), creating any missing parent directories and replacing
	// an existing file at that path.
	WriteFile(relPath string, data []byte) error
}

// TemplateEngine renders one template source against the merged model and
// an optional per-directive extra scope. Engines are discovered by name;
// tplengine.Engine is the reference implementation.
type TemplateEngine interface {
	Render(in io.Reader, name, charset string, out io.Writer, scope *model.Node, extraScope *model.Node) error
}

type replaceOp struct {
	regex       *regexp.Regexp
	replacement string
}

// Generator is the output-generating visitor.
type Generator struct {
	fsys    fs.FS
	sink    Sink
	model   *model.Node
	engines map[string]TemplateEngine

	transformations map[string][]replaceOp
	txStack         []string
}

// NewGenerator returns a Generator that reads FILE/FILES/TEMPLATE/TEMPLATES
// sources relative to the walker's current directory from fsys, writes
// results to sink, renders TEMPLATE/TEMPLATES content against mergedModel
// (already Finalize()d: the merged model must be complete before any
// TEMPLATE directive renders, since `scope` is the whole tree, not a
// partial one built alongside the same walk), and resolves a TEMPLATE's
// `engine` attribute against engines.
func NewGenerator(fsys fs.FS, sink Sink, mergedModel *model.Node, engines map[string]TemplateEngine) *Generator {
	return &Generator{
		fsys:            fsys,
		sink:            sink,
		model:           mergedModel,
		engines:         engines,
		transformations: make(map[string][]replaceOp),
	}
}

// Visit implements walker.NodeVisitor.
func (g *Generator) Visit(w *walker.Walker, n *ast.Node) (walker.VisitResult, error) {
	switch n.Kind {
	case ast.KindFile:
		if err := g.doFile(w, n); err != nil {
			return walker.Continue, err
		}
		return walker.SkipSubtree, nil
	case ast.KindFiles:
		if err := g.doFiles(w, n, false); err != nil {
			return walker.Continue, err
		}
		return walker.SkipSubtree, nil
	case ast.KindTemplate:
		if err := g.doTemplate(w, n); err != nil {
			return walker.Continue, err
		}
		return walker.SkipSubtree, nil
	case ast.KindTemplates:
		if err := g.doFiles(w, n, true); err != nil {
			return walker.Continue, err
		}
		return walker.SkipSubtree, nil
	case ast.KindTransformation:
		id := n.AttrString("id", "")
		if id == "" {
			return walker.Continue, fmt.Errorf("output: %s: transformation requires an id attribute", n.Loc)
		}
		g.transformations[id] = nil
		g.txStack = append(g.txStack, id)
		return walker.Continue, nil
	case ast.KindReplace:
		if len(g.txStack) == 0 {
			return walker.Continue, fmt.Errorf("output: %s: replace outside a transformation", n.Loc)
		}
		pattern := n.AttrString("regex", "")
		re, err := regexp.CompilePOSIX(pattern)
		if err != nil {
			return walker.Continue, fmt.Errorf("output: %s: regex %q: %w", n.Loc, pattern, err)
		}
		id := g.txStack[len(g.txStack)-1]
		g.transformations[id] = append(g.transformations[id], replaceOp{regex: re, replacement: n.AttrString("replacement", "")})
		return walker.Continue, nil
	default:
		return walker.Continue, nil
	}
}

// PostVisit implements walker.NodeVisitor.
func (g *Generator) PostVisit(w *walker.Walker, n *ast.Node) error {
	if n.Kind == ast.KindTransformation {
		g.txStack = g.txStack[:len(g.txStack)-1]
	}
	return nil
}

func (g *Generator) doFile(w *walker.Walker, n *ast.Node) error {
	src := n.AttrString("source", "")
	dst := n.AttrString("target", "")
	if src == "" || dst == "" {
		return fmt.Errorf("output: %s: file requires source and target attributes", n.Loc)
	}
	data, err := fs.ReadFile(g.fsys, walker.ResolvePath(w.Cwd(), src))
	if err != nil {
		return fmt.Errorf("output: %s: reading %q: %w", n.Loc, src, err)
	}
	return g.sink.WriteFile(dst, data)
}

func (g *Generator) doTemplate(w *walker.Walker, n *ast.Node) error {
	name := n.AttrString("engine", "")
	engine, ok := g.engines[name]
	if !ok {
		return fmt.Errorf("output: %s: unknown template engine %q", n.Loc, name)
	}
	src := n.AttrString("source", "")
	dst := n.AttrString("target", "")
	if src == "" || dst == "" {
		return fmt.Errorf("output: %s: template requires source and target attributes", n.Loc)
	}
	f, err := g.fsys.Open(walker.ResolvePath(w.Cwd(), src))
	if err != nil {
		return fmt.Errorf("output: %s: opening %q: %w", n.Loc, src, err)
	}
	defer func() { _ = f.Close() }()

	extraScope, err := g.buildExtraScope(w, n)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	charset := n.AttrString("charset", "UTF-8")
	if err := engine.Render(f, src, charset, &buf, g.model, extraScope); err != nil {
		return fmt.Errorf("output: %s: rendering %q: %w", n.Loc, src, err)
	}
	return g.sink.WriteFile(dst, buf.Bytes())
}

// buildExtraScope builds the template node's own nested <model> subtree
// (if any) into a standalone merged model, the render call's extraScope.
// The sub-walk uses a fresh Walker sharing the outer
// walker's loader, current script and scope, so relative `file` attributes
// inside the nested <model> still resolve against the same cwd, but its
// own visitor/call stack never touches the outer walk still in progress.
func (g *Generator) buildExtraScope(w *walker.Walker, n *ast.Node) (*model.Node, error) {
	var modelNode *ast.Node
	for _, c := range n.Children {
		if c.Kind == ast.KindModel {
			modelNode = c
			break
		}
	}
	if modelNode == nil {
		return nil, nil
	}
	sub := walker.New(w.Loader(), w.CurrentScript(), w.Cwd(), w.CurrentScope())
	r := model.NewResolver(g.fsys)
	if err := sub.Walk(modelNode, r); err != nil {
		return nil, err
	}
	r.Model().Finalize()
	return r.Model(), nil
}

// doFiles implements <files> (isTemplates=false) and <templates>
// (isTemplates=true): scan `directory`, keep matches passing the
// include/exclude glob filter, rewrite each match's relative path through
// its referenced transformations, and copy or render the result. A file
// matches when at least one include pattern (default `**`) accepts it and
// no exclude pattern does.
func (g *Generator) doFiles(w *walker.Walker, n *ast.Node, isTemplates bool) error {
	dirAttr := n.AttrString("directory", "")
	if dirAttr == "" {
		return fmt.Errorf("output: %s: %s requires a directory attribute", n.Loc, n.Kind)
	}
	root := walker.ResolvePath(w.Cwd(), dirAttr)

	includes, excludes := collectGlobs(n)
	if len(includes) == 0 {
		includes = []string{"**"}
	}

	ops, err := g.resolveOps(n)
	if err != nil {
		return err
	}

	var engine TemplateEngine
	if isTemplates {
		name := n.AttrString("engine", "")
		e, ok := g.engines[name]
		if !ok {
			return fmt.Errorf("output: %s: unknown template engine %q", n.Loc, name)
		}
		engine = e
	}
	charset := n.AttrString("charset", "UTF-8")
	scope := w.CurrentScope()

	return fs.WalkDir(g.fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := relPath(root, p)
		if !matchesAny(includes, rel) || matchesAny(excludes, rel) {
			return nil
		}
		destRel, terr := applyTransform(rel, ops, scope)
		if terr != nil {
			return terr
		}

		if !isTemplates {
			data, rerr := fs.ReadFile(g.fsys, p)
			if rerr != nil {
				return rerr
			}
			return g.sink.WriteFile(destRel, data)
		}
		f, oerr := g.fsys.Open(p)
		if oerr != nil {
			return oerr
		}
		defer func() { _ = f.Close() }()
		var buf bytes.Buffer
		if rerr := engine.Render(f, p, charset, &buf, g.model, nil); rerr != nil {
			return fmt.Errorf("output: %s: rendering %q: %w", n.Loc, p, rerr)
		}
		return g.sink.WriteFile(destRel, buf.Bytes())
	})
}

func collectGlobs(n *ast.Node) (includes, excludes []string) {
	for _, c := range n.Children {
		switch c.Kind {
		case ast.KindIncludes:
			for _, p := range c.Children {
				if p.Kind == ast.KindInclude {
					if s, err := p.Val.AsString(); err == nil && s != "" {
						includes = append(includes, s)
					}
				}
			}
		case ast.KindExcludes:
			for _, p := range c.Children {
				if p.Kind == ast.KindExclude {
					if s, err := p.Val.AsString(); err == nil && s != "" {
						excludes = append(excludes, s)
					}
				}
			}
		}
	}
	return includes, excludes
}

func matchesAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// resolveOps expands a files/templates directive's `transformations`
// attribute (space- or comma-separated ids) into a flat op list: each id's
// own replace operations in their declared order, concatenated in the
// order the ids themselves are listed.
func (g *Generator) resolveOps(n *ast.Node) ([]replaceOp, error) {
	raw := n.AttrString("transformations", "")
	if raw == "" {
		return nil, nil
	}
	var ops []replaceOp
	for _, id := range strings.Fields(strings.ReplaceAll(raw, ",", " ")) {
		tops, ok := g.transformations[id]
		if !ok {
			return nil, fmt.Errorf("output: %s: unknown transformation %q", n.Loc, id)
		}
		ops = append(ops, tops...)
	}
	return ops, nil
}

// applyTransform rewrites rel through ops in order. Each op's replacement
// text is interpolated against scope at apply time, then substituted via
// Go's `$1`/`${name}` regexp replacement syntax (independent of the
// pattern's POSIX-extended flavor), so replacements keep standard
// backreferences. A replacement that itself needs a brace-delimited
// backreference (`${1}`) would collide with `${...}` context
// interpolation; this is not a supported combination.
func applyTransform(rel string, ops []replaceOp, scope *ctxscope.Scope) (string, error) {
	out := rel
	for _, op := range ops {
		repl, err := scope.Interpolate(op.replacement)
		if err != nil {
			return "", err
		}
		out = op.regex.ReplaceAllString(out, repl)
	}
	return out, nil
}

// relPath computes p's path relative to root, both forward-slash fs.FS
// paths as produced by fs.WalkDir.
func relPath(root, p string) string {
	if root == "." || root == "" {
		return p
	}
	return strings.TrimPrefix(p, root+"/")
}
