// Package tplengine implements output.TemplateEngine with the standard
// library's text/template. The engine contract is deliberately small so
// richer renderers (Mustache and friends) can be registered by name
// alongside or instead of this one; this implementation is the default
// used by the CLI and the tests.
package tplengine

import (
	"fmt"
	"io"
	"text/template"

	"github.com/helidon-io/archetype-engine/model"
)

// Engine renders text/template sources (default "{{ }}" delimiters) against
// a merged model converted to generic map/slice/string data.
// charset is accepted for contract compatibility but not otherwise
// interpreted: rendering always reads/writes Go's native UTF-8 strings.
type Engine struct{}

// New returns a ready-to-use Engine.
func New() *Engine { return &Engine{} }

// Render implements output.TemplateEngine. scope's fields are exposed at
// the top level of the template data (`{{.groupId}}`); extraScope, if
// non-nil, is exposed under the "Extra" key (`{{.Extra.readme}}`), keeping
// a TEMPLATE node's own nested <model> addressable without risking a
// silent collision with the main merged model's keys.
func (e *Engine) Render(in io.Reader, name, charset string, out io.Writer, scope, extraScope *model.Node) error {
	src, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("tplengine: reading %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(src))
	if err != nil {
		return fmt.Errorf("tplengine: parsing %s: %w", name, err)
	}

	data, _ := toData(scope).(map[string]any)
	if data == nil {
		data = make(map[string]any)
	}
	if extraScope != nil {
		data["Extra"] = toData(extraScope)
	}

	if err := tmpl.Execute(out, data); err != nil {
		return fmt.Errorf("tplengine: executing %s: %w", name, err)
	}
	return nil
}

// toData converts a merged model node into the generic map[string]any /
// []any / string tree text/template traverses via dotted field access
// (`{{.key}}`) or `range`.
func toData(n *model.Node) any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case model.KindMap:
		keys := n.Keys()
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			c, _ := n.Get(k)
			out[k] = toData(c)
		}
		return out
	case model.KindList:
		out := make([]any, len(n.Items))
		for i, it := range n.Items {
			out[i] = toData(it)
		}
		return out
	default:
		return n.Content
	}
}
