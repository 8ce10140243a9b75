package xmlscript

import (
	"io"

	"github.com/beevik/etree"

	"github.com/helidon-io/archetype-engine/ast"
)

// Writer serializes an ast.Node tree back to XML. It targets structural
// round-trip equivalence (same element/attribute/text shape once re-parsed)
// rather than byte-exact output: ast.Node intentionally doesn't retain raw
// formatting/whitespace, only attribute declaration order (Node.AttrOrder).
type Writer struct {
	Indent int
}

// NewWriter returns a Writer with the conventional two-space indent.
func NewWriter() *Writer {
	return &Writer{Indent: 2}
}

// Write renders root (and its subtree) as an XML document.
func (w *Writer) Write(root *ast.Node, out io.Writer) error {
	doc := etree.NewDocument()
	doc.Indent(w.Indent)
	doc.AddChild(nodeToElement(root))
	_, err := doc.WriteTo(out)
	return err
}

func nodeToElement(n *ast.Node) *etree.Element {
	el := etree.NewElement(tagForKind(n.Kind))
	for _, key := range n.AttrOrder() {
		v, _ := n.Attr(key)
		s, _ := v.AsString()
		el.CreateAttr(key, s)
	}
	if n.Guard != nil && !n.Guard.IsLiteralTrue() {
		el.CreateAttr("if", n.Guard.Raw())
	}
	if !n.Val.IsEmpty() {
		if s, err := n.Val.AsString(); err == nil && s != "" {
			el.CreateText(s)
		}
	}
	for _, c := range n.Children {
		el.AddChild(nodeToElement(c))
	}
	return el
}
