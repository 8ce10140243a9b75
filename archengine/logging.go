package archengine

import (
	"log/slog"

	"github.com/helidon-io/archetype-engine/ast"
	"github.com/helidon-io/archetype-engine/walker"
)

// loggingVisitor wraps a phase's primary visitor with structured logging:
// a Debug event per node visited (script path, kind, guard source), and an
// Info event per resolved input or per output action. It never changes the
// inner visitor's VisitResult or error; logging is a side channel, not a
// traversal decision.
//
// Only nodes whose guard evaluates true ever reach Visit (the walker skips
// the subtree before calling any visitor when a guard is false, per
// walker.walkNode), so there is no separate "guard failed" event to emit
// here; a skipped guard is simply the absence of a node-visited event for
// that subtree.
type loggingVisitor struct {
	logger *slog.Logger
	phase  string
	inner  walker.NodeVisitor
}

func (v *loggingVisitor) Visit(w *walker.Walker, n *ast.Node) (walker.VisitResult, error) {
	result, err := v.inner.Visit(w, n)

	v.logger.Debug("node visited",
		"phase", v.phase,
		"script", n.Loc.String(),
		"kind", n.Kind.String(),
		"guard", n.Guard.Raw(),
		"result", result.String(),
	)

	if err == nil {
		switch {
		case n.Kind.IsInput() || n.Kind.IsPreset() || n.Kind.IsVariable():
			v.logger.Info("input resolved", "id", n.ID(), "kind", n.Kind.String())
		case n.Kind == ast.KindFile || n.Kind == ast.KindTemplate:
			v.logger.Info("output action",
				"kind", n.Kind.String(),
				"source", n.AttrString("source", ""),
				"target", n.AttrString("target", ""),
			)
		case n.Kind == ast.KindFiles || n.Kind == ast.KindTemplates:
			v.logger.Info("output action",
				"kind", n.Kind.String(),
				"source", n.AttrString("directory", ""),
				"target", "",
			)
		}
	}

	return result, err
}

func (v *loggingVisitor) PostVisit(w *walker.Walker, n *ast.Node) error {
	return v.inner.PostVisit(w, n)
}
