package input

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/helidon-io/archetype-engine/ast"
	"github.com/helidon-io/archetype-engine/ctxscope"
	"github.com/helidon-io/archetype-engine/value"
	"github.com/helidon-io/archetype-engine/walker"
	"github.com/helidon-io/archetype-engine/xmlscript"
)

type recorder struct {
	visited []string
}

func key(n *ast.Node) string {
	return n.Kind.String() + "#" + n.AttrString("id", n.AttrString("value", ""))
}

func (r *recorder) visit(n *ast.Node) { r.visited = append(r.visited, key(n)) }

// chain composes the InputResolver with a recorder so tests can assert both
// the resolved value and which nodes the walker actually descended into.
type chain struct {
	primary *InputResolver
	rec     *recorder
}

func (c *chain) Visit(w *walker.Walker, n *ast.Node) (walker.VisitResult, error) {
	r, err := c.primary.Visit(w, n)
	if err != nil {
		return r, err
	}
	c.rec.visit(n)
	return r, nil
}

func (c *chain) PostVisit(w *walker.Walker, n *ast.Node) error {
	return c.primary.PostVisit(w, n)
}

func newScript(t *testing.T, xml string) *ast.Script {
	t.Helper()
	fsys := fstest.MapFS{"main.xml": {Data: []byte(xml)}}
	l := xmlscript.NewLoader(fsys)
	script, err := l.Load("main.xml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return script
}

func run(t *testing.T, xml string, resolver *InputResolver, seed func(root *ctxscope.Scope)) (*recorder, *ctxscope.Scope) {
	t.Helper()
	script := newScript(t, xml)
	root := ctxscope.NewRoot()
	if seed != nil {
		seed(root)
	}
	w := walker.New(xmlscript.NewLoader(fstest.MapFS{}), script, ".", root)
	rec := &recorder{}
	c := &chain{primary: resolver, rec: rec}
	if err := w.Walk(script.Root, c); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	return rec, root
}

func seedValue(t *testing.T, root *ctxscope.Scope, id string, v value.Value, kind ctxscope.ValueKind) {
	t.Helper()
	p, err := ctxscope.ParsePath(id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := root.GetOrCreate(p, false); err != nil {
		t.Fatal(err)
	}
	if err := root.PutValue(id, v, kind); err != nil {
		t.Fatal(err)
	}
}

func TestExistingPresetBooleanTrueContinues(t *testing.T) {
	rec, _ := run(t, `<archetype-script>
  <inputs><boolean id="feature"><step id="inside"/></boolean></inputs>
</archetype-script>`, NewBatch(Options{}), func(root *ctxscope.Scope) {
		seedValue(t, root, "feature", value.NewBool(true), ctxscope.KindPreset)
	})
	want := []string{"archetype-script#", "inputs#", "input(boolean)#feature", "step#inside"}
	assertVisited(t, rec.visited, want)
}

func TestExistingPresetBooleanFalseSkipsSubtree(t *testing.T) {
	rec, _ := run(t, `<archetype-script>
  <inputs><boolean id="feature"><step id="inside"/></boolean></inputs>
</archetype-script>`, NewBatch(Options{}), func(root *ctxscope.Scope) {
		seedValue(t, root, "feature", value.NewBool(false), ctxscope.KindPreset)
	})
	want := []string{"archetype-script#", "inputs#", "input(boolean)#feature"}
	assertVisited(t, rec.visited, want)
}

func TestBatchOptionalAcceptsDefaultAttr(t *testing.T) {
	_, root := run(t, `<archetype-script>
  <inputs><text id="flavor" optional="true" default="vanilla"/></inputs>
</archetype-script>`, NewBatch(Options{FailOnUnresolvedInput: true}), nil)
	v, found, err := root.GetValue(mustPath(t, "flavor"))
	if err != nil || !found {
		t.Fatalf("GetValue: found=%v err=%v", found, err)
	}
	s, _ := v.AsString()
	if s != "vanilla" {
		t.Fatalf("got %q", s)
	}
}

func TestBatchOptionalBooleanAcceptsFalse(t *testing.T) {
	rec, _ := run(t, `<archetype-script>
  <inputs><boolean id="feature" optional="true"><step id="inside"/></boolean></inputs>
</archetype-script>`, NewBatch(Options{FailOnUnresolvedInput: true}), nil)
	want := []string{"archetype-script#", "inputs#", "input(boolean)#feature"}
	assertVisited(t, rec.visited, want)
}

func TestBatchRequiredRaisesUnresolved(t *testing.T) {
	script := newScript(t, `<archetype-script>
  <inputs><text id="name"/></inputs>
</archetype-script>`)
	root := ctxscope.NewRoot()
	w := walker.New(xmlscript.NewLoader(fstest.MapFS{}), script, ".", root)
	r := NewBatch(Options{FailOnUnresolvedInput: true})
	err := w.Walk(script.Root, r)
	if err == nil {
		t.Fatal("expected error")
	}
	var ue *UnresolvedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnresolvedError, got %T: %v", err, err)
	}
}

func TestBatchNotFailOnUnresolvedAcceptsZero(t *testing.T) {
	_, root := run(t, `<archetype-script>
  <inputs><text id="name"/></inputs>
</archetype-script>`, NewBatch(Options{FailOnUnresolvedInput: false}), nil)
	v, found, err := root.GetValue(mustPath(t, "name"))
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	s, _ := v.AsString()
	if s != "" {
		t.Fatalf("got %q, want empty", s)
	}
}

func TestAutoResolveListZeroEffectiveOptions(t *testing.T) {
	rec, root := run(t, `<archetype-script>
  <inputs>
    <list id="extras">
      <option value="a" if="false"/>
      <step id="inside"/>
    </list>
  </inputs>
</archetype-script>`, NewBatch(Options{FailOnUnresolvedInput: true}), nil)
	want := []string{"archetype-script#", "inputs#", "input(list)#extras"}
	assertVisited(t, rec.visited, want)
	v, _, _ := root.GetValue(mustPath(t, "extras"))
	items, _ := v.AsList()
	if len(items) != 0 {
		t.Fatalf("got %v, want empty", items)
	}
}

func TestAutoResolveEnumSingleOptionMatchingDefault(t *testing.T) {
	_, root := run(t, `<archetype-script>
  <inputs>
    <enum id="flavor" default="blue">
      <option value="blue"/>
      <option value="red" if="false"/>
    </enum>
  </inputs>
</archetype-script>`, NewBatch(Options{FailOnUnresolvedInput: true}), nil)
	v, found, err := root.GetValue(mustPath(t, "flavor"))
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	s, _ := v.AsString()
	if s != "blue" {
		t.Fatalf("got %q", s)
	}
}

type fakePrompter struct {
	responses []string
	i         int
}

func (f *fakePrompter) Prompt(Prompt) (string, error) {
	if f.i >= len(f.responses) {
		return "", errors.New("fakePrompter: out of responses")
	}
	r := f.responses[f.i]
	f.i++
	return r, nil
}

func TestInteractiveBooleanEmptyAcceptsDefault(t *testing.T) {
	p := &fakePrompter{responses: []string{""}}
	_, root := run(t, `<archetype-script>
  <inputs><boolean id="feature" default="true"/></inputs>
</archetype-script>`, NewInteractive(p, Options{}), nil)
	v, _, _ := root.GetValue(mustPath(t, "feature"))
	b, _ := v.AsBoolean()
	if !b {
		t.Fatal("expected true")
	}
}

func TestInteractiveEnumSelectsByIndex(t *testing.T) {
	p := &fakePrompter{responses: []string{"2"}}
	_, root := run(t, `<archetype-script>
  <inputs>
    <enum id="color">
      <option value="blue"/>
      <option value="RED"/>
    </enum>
  </inputs>
</archetype-script>`, NewInteractive(p, Options{}), nil)
	v, _, _ := root.GetValue(mustPath(t, "color"))
	s, _ := v.AsString()
	if s != "red" {
		t.Fatalf("got %q, want lowercased %q", s, "red")
	}
}

func TestInteractiveRepromptsOnInvalidIndex(t *testing.T) {
	p := &fakePrompter{responses: []string{"bogus", "9", "1"}}
	_, root := run(t, `<archetype-script>
  <inputs>
    <enum id="color">
      <option value="blue"/>
      <option value="red"/>
    </enum>
  </inputs>
</archetype-script>`, NewInteractive(p, Options{}), nil)
	v, _, _ := root.GetValue(mustPath(t, "color"))
	s, _ := v.AsString()
	if s != "blue" {
		t.Fatalf("got %q", s)
	}
	if p.i != 3 {
		t.Fatalf("expected all 3 responses consumed, got %d", p.i)
	}
}

func TestOptionVisitationSelectsMatchingOptionOnly(t *testing.T) {
	p := &fakePrompter{responses: []string{"1"}}
	rec, _ := run(t, `<archetype-script>
  <inputs>
    <enum id="color">
      <option value="blue"><step id="blue-step"/></option>
      <option value="red"><step id="red-step"/></option>
    </enum>
  </inputs>
</archetype-script>`, NewInteractive(p, Options{}), nil)
	want := []string{
		"archetype-script#", "inputs#", "input(enum)#color",
		"option#blue", "step#blue-step", "option#red",
	}
	assertVisited(t, rec.visited, want)
}

func TestValidateTextRegexFailureAggregatesErrors(t *testing.T) {
	script := newScript(t, `<archetype-script>
  <inputs>
    <text id="name">
      <validations>
        <validation message="must be lowercase"><regex pattern="^[a-z]+$"/></validation>
      </validations>
    </text>
  </inputs>
</archetype-script>`)
	root := ctxscope.NewRoot()
	seedValue(t, root, "name", value.NewString("CAPS"), ctxscope.KindPreset)
	w := walker.New(xmlscript.NewLoader(fstest.MapFS{}), script, ".", root)
	err := w.Walk(script.Root, NewBatch(Options{}))
	if err == nil {
		t.Fatal("expected validation error")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
}

func TestValidateEnumRejectsValueNotAmongOptions(t *testing.T) {
	script := newScript(t, `<archetype-script>
  <inputs>
    <enum id="color">
      <option value="blue"/>
      <option value="red"/>
    </enum>
  </inputs>
</archetype-script>`)
	root := ctxscope.NewRoot()
	seedValue(t, root, "color", value.NewString("green"), ctxscope.KindPreset)
	w := walker.New(xmlscript.NewLoader(fstest.MapFS{}), script, ".", root)
	err := w.Walk(script.Root, NewBatch(Options{}))
	if err == nil {
		t.Fatal("expected invalid-input error")
	}
	var ie *InvalidError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvalidError, got %T: %v", err, err)
	}
}

func TestVariableComputesAndWritesLocalVar(t *testing.T) {
	_, root := run(t, `<archetype-script>
  <variables><text id="greeting" value="hello"/></variables>
</archetype-script>`, NewBatch(Options{}), nil)
	v, found, err := root.GetValue(mustPath(t, "greeting"))
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	s, _ := v.AsString()
	if s != "hello" {
		t.Fatalf("got %q", s)
	}
}

func mustPath(t *testing.T, s string) *ctxscope.ContextPath {
	t.Helper()
	p, err := ctxscope.ParsePath(s)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func assertVisited(t *testing.T, got, want []string) {
	t.Helper()
	assert.Equal(t, want, got)
}
