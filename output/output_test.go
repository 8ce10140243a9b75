package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/helidon-io/archetype-engine/ctxscope"
	"github.com/helidon-io/archetype-engine/model"
	"github.com/helidon-io/archetype-engine/walker"
	"github.com/helidon-io/archetype-engine/xmlscript"
)

// memSink records writes in memory, keyed by the relative path passed to
// WriteFile, for assertions without touching a real filesystem.
type memSink struct {
	files map[string]string
}

func newMemSink() *memSink { return &memSink{files: make(map[string]string)} }

func (m *memSink) WriteFile(relPath string, data []byte) error {
	m.files[relPath] = string(data)
	return nil
}

func (m *memSink) keys() []string {
	out := make([]string, 0, len(m.files))
	for k := range m.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// stubEngine renders `rendered:<name>:src=<quoted source>:title=<scope.title>:extra=<extraScope.extra>`
// so tests can assert both the main merged model and a TEMPLATE's own
// nested extraScope reached the engine.
type stubEngine struct{}

func (stubEngine) Render(in io.Reader, name, charset string, out io.Writer, scope, extraScope *model.Node) error {
	src, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	title := ""
	if t, ok := scope.Get("title"); ok {
		title = t.Content
	}
	extra := ""
	if extraScope != nil {
		if e, ok := extraScope.Get("extra"); ok {
			extra = e.Content
		}
	}
	fmt.Fprintf(out, "rendered:%s:src=%q:title=%s:extra=%s", name, string(src), title, extra)
	return nil
}

func buildMergedModel(t *testing.T, l *xmlscript.Loader, scriptPath string, scope *ctxscope.Scope) *model.Node {
	t.Helper()
	script, err := l.Load(scriptPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w := walker.New(l, script, ".", scope)
	r := model.NewResolver(nil)
	if err := w.Walk(script.Root, r); err != nil {
		t.Fatalf("model walk: %v", err)
	}
	r.Model().Finalize()
	return r.Model()
}

func TestGeneratorFileCopiesSourceToTarget(t *testing.T) {
	fsys := fstest.MapFS{
		"main.xml": {Data: []byte(`<archetype-script>
  <output>
    <file source="static/LICENSE.txt" target="LICENSE.txt"/>
  </output>
</archetype-script>`)},
		"static/LICENSE.txt": {Data: []byte("MIT")},
	}
	l := xmlscript.NewLoader(fsys)
	script, err := l.Load("main.xml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mm := buildMergedModel(t, l, "main.xml", ctxscope.NewRoot())
	sink := newMemSink()
	gen := NewGenerator(fsys, sink, mm, nil)
	w := walker.New(l, script, ".", ctxscope.NewRoot())
	if err := w.Walk(script.Root, gen); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if sink.files["LICENSE.txt"] != "MIT" {
		t.Fatalf("LICENSE.txt = %q, want %q", sink.files["LICENSE.txt"], "MIT")
	}
}

func TestGeneratorFilesAppliesGlobFilterAndTransformation(t *testing.T) {
	fsys := fstest.MapFS{
		"main.xml": {Data: []byte(`<archetype-script>
  <output>
    <transformation id="pkg">
      <replace regex="__pkg__" replacement="com/example"/>
    </transformation>
    <files directory="src" transformations="pkg">
      <includes><include>**/*.java</include></includes>
      <excludes><exclude>**/Skip.java</exclude></excludes>
    </files>
  </output>
</archetype-script>`)},
		"src/__pkg__/Main.java": {Data: []byte("public class Main {}")},
		"src/__pkg__/Skip.java": {Data: []byte("skip")},
		"src/README.md":         {Data: []byte("not java")},
	}
	l := xmlscript.NewLoader(fsys)
	script, err := l.Load("main.xml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mm := buildMergedModel(t, l, "main.xml", ctxscope.NewRoot())
	sink := newMemSink()
	gen := NewGenerator(fsys, sink, mm, nil)
	w := walker.New(l, script, ".", ctxscope.NewRoot())
	if err := w.Walk(script.Root, gen); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	got := sink.keys()
	want := []string{"com/example/Main.java"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("copied files = %v, want %v", got, want)
	}
	if sink.files["com/example/Main.java"] != "public class Main {}" {
		t.Fatalf("unexpected content: %q", sink.files["com/example/Main.java"])
	}
}

func TestGeneratorTemplateRendersWithMergedModelAndExtraScope(t *testing.T) {
	fsys := fstest.MapFS{
		"main.xml": {Data: []byte(`<archetype-script>
  <output>
    <model>
      <value key="title" order="100">Hello</value>
    </model>
    <template engine="stub" source="tpl/README.md.tpl" target="README.md">
      <model>
        <value key="extra" order="100">World</value>
      </model>
    </template>
  </output>
</archetype-script>`)},
		"tpl/README.md.tpl": {Data: []byte("{{.Title}}")},
	}
	l := xmlscript.NewLoader(fsys)
	script, err := l.Load("main.xml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mm := buildMergedModel(t, l, "main.xml", ctxscope.NewRoot())
	sink := newMemSink()
	gen := NewGenerator(fsys, sink, mm, map[string]TemplateEngine{"stub": stubEngine{}})
	w := walker.New(l, script, ".", ctxscope.NewRoot())
	if err := w.Walk(script.Root, gen); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	got, ok := sink.files["README.md"]
	if !ok {
		t.Fatal("expected README.md to be written")
	}
	if !strings.Contains(got, "title=Hello") || !strings.Contains(got, "extra=World") {
		t.Fatalf("rendered output missing expected scope values: %q", got)
	}
}

func TestGeneratorTemplatesRendersEveryMatch(t *testing.T) {
	fsys := fstest.MapFS{
		"main.xml": {Data: []byte(`<archetype-script>
  <output>
    <templates engine="stub" directory="docs"/>
  </output>
</archetype-script>`)},
		"docs/a.txt": {Data: []byte("A")},
		"docs/b.txt": {Data: []byte("B")},
	}
	l := xmlscript.NewLoader(fsys)
	script, err := l.Load("main.xml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mm := buildMergedModel(t, l, "main.xml", ctxscope.NewRoot())
	sink := newMemSink()
	gen := NewGenerator(fsys, sink, mm, map[string]TemplateEngine{"stub": stubEngine{}})
	w := walker.New(l, script, ".", ctxscope.NewRoot())
	if err := w.Walk(script.Root, gen); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	for _, name := range []string{"a.txt", "b.txt"} {
		if _, ok := sink.files[name]; !ok {
			t.Fatalf("expected %s to be rendered", name)
		}
	}
}
