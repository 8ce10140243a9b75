// Package xmlscript reads archetype-script XML documents into an ast.Script
// tree: an fs.FS-rooted, permissive XML reader with a path-keyed cache so a
// script sourced or exec'd from multiple places is only parsed once.
package xmlscript

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/beevik/etree"

	"github.com/helidon-io/archetype-engine/ast"
	"github.com/helidon-io/archetype-engine/exprlang"
	"github.com/helidon-io/archetype-engine/value"
)

// ErrScriptNotFound reports a script path that does not exist under the
// loader's root.
var ErrScriptNotFound = errors.New("xmlscript: script not found")

// Loader loads and caches archetype scripts rooted at an fs.FS.
type Loader struct {
	fsys  fs.FS
	cache map[string]*ast.Script
}

// NewLoader returns a Loader rooted at fsys (typically os.DirFS(scriptRoot)).
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, cache: make(map[string]*ast.Script)}
}

// Load parses and caches the script at path, satisfying ast.ScriptLoader.
func (l *Loader) Load(path string) (*ast.Script, error) {
	path = strings.TrimPrefix(path, "./")
	if s, ok := l.cache[path]; ok {
		return s, nil
	}
	f, err := l.fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return nil, fmt.Errorf("xmlscript: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("xmlscript: read %s: %w", path, err)
	}

	script, err := ParseScript(path, data, l)
	if err != nil {
		return nil, err
	}
	l.cache[path] = script
	return script, nil
}

// ParseScript parses raw XML bytes into an *ast.Script. loader is recorded
// on the Script so the walker can resolve further SOURCE/EXEC/CALL
// references relative to the same root; it may be nil for a standalone
// parse (e.g. in tests).
func ParseScript(path string, data []byte, loader *Loader) (*ast.Script, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("xmlscript: parse %s: %w", path, err)
	}
	rootEl := doc.Root()
	if rootEl == nil {
		return nil, fmt.Errorf("xmlscript: %s: empty document", path)
	}

	script := &ast.Script{Path: path}
	if loader != nil {
		script.Loader = loader
	}

	lc := newLocator(data)
	root, err := buildNode(rootEl, ast.KindUnknown, lc, script)
	if err != nil {
		return nil, err
	}
	script.Root = root
	script.Methods = make(map[string]*ast.Node)
	collectMethods(root, script.Methods)
	return script, nil
}

func buildNode(el *etree.Element, parentKind ast.Kind, lc *locator, script *ast.Script) (*ast.Node, error) {
	kind, ok := kindForTag(el.Tag, parentKind)
	if !ok {
		loc := lc.locate(el.FullTag())
		return nil, fmt.Errorf("xmlscript: %s:%d:%d: unrecognized element <%s> under %s",
			script.Path, loc.Line, loc.Column, el.Tag, parentKind)
	}
	loc := lc.locate(el.FullTag())

	n := ast.NewNode(kind, ast.Location{File: script.Path, Line: loc.Line, Column: loc.Column, Offset: loc.Offset})
	n.Script = script

	for _, a := range el.Attr {
		if a.Key == "if" {
			expr, err := exprlang.Parse(a.Value)
			if err != nil {
				return nil, fmt.Errorf("xmlscript: %s: if=%q: %w", n.Loc, a.Value, err)
			}
			n.Guard = expr
			continue
		}
		n.SetAttr(a.Key, value.NewString(a.Value))
	}
	if n.Guard == nil {
		n.Guard = ast.AlwaysTrue
	}

	var text []string
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			childNode, err := buildNode(c, kind, lc, script)
			if err != nil {
				return nil, err
			}
			n.AppendChild(childNode)
		case *etree.CharData:
			if !c.IsWhitespace() {
				text = append(text, c.Data)
			}
		}
	}
	if len(text) > 0 {
		n.Val = value.NewString(strings.Join(text, ""))
	}
	return n, nil
}

func collectMethods(n *ast.Node, out map[string]*ast.Node) {
	if n.Kind == ast.KindMethod {
		if name := n.AttrString("name", ""); name != "" {
			out[name] = n
		}
	}
	for _, c := range n.Children {
		collectMethods(c, out)
	}
}
