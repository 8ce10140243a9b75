package tplengine

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/helidon-io/archetype-engine/ctxscope"
	"github.com/helidon-io/archetype-engine/model"
	"github.com/helidon-io/archetype-engine/walker"
	"github.com/helidon-io/archetype-engine/xmlscript"
)

func buildModel(t *testing.T, xml string) *model.Node {
	t.Helper()
	fsys := fstest.MapFS{"main.xml": {Data: []byte(xml)}}
	l := xmlscript.NewLoader(fsys)
	script, err := l.Load("main.xml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w := walker.New(l, script, ".", ctxscope.NewRoot())
	r := model.NewResolver(fsys)
	if err := w.Walk(script.Root, r); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	r.Model().Finalize()
	return r.Model()
}

func TestEngineRendersScopeFields(t *testing.T) {
	scope := buildModel(t, `<archetype-script>
  <output>
    <model>
      <value key="groupId" order="100">com.example</value>
      <value key="artifactId" order="100">demo</value>
    </model>
  </output>
</archetype-script>`)

	var out strings.Builder
	e := New()
	err := e.Render(strings.NewReader("{{.groupId}}:{{.artifactId}}"), "pom.xml.tpl", "UTF-8", &out, scope, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.String() != "com.example:demo" {
		t.Fatalf("rendered = %q, want %q", out.String(), "com.example:demo")
	}
}

func TestEngineRendersListWithRange(t *testing.T) {
	scope := buildModel(t, `<archetype-script>
  <output>
    <model>
      <list key="modules">
        <value order="200">first</value>
        <value order="100">second</value>
      </list>
    </model>
  </output>
</archetype-script>`)

	var out strings.Builder
	e := New()
	err := e.Render(strings.NewReader("{{range .modules}}{{.}},{{end}}"), "settings.gradle.tpl", "UTF-8", &out, scope, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.String() != "first,second," {
		t.Fatalf("rendered = %q, want %q", out.String(), "first,second,")
	}
}

func TestEngineExposesExtraScopeUnderExtraKey(t *testing.T) {
	scope := buildModel(t, `<archetype-script>
  <output>
    <model>
      <value key="groupId" order="100">com.example</value>
    </model>
  </output>
</archetype-script>`)
	extra := buildModel(t, `<archetype-script>
  <output>
    <model>
      <value key="readme" order="100">hello</value>
    </model>
  </output>
</archetype-script>`)

	var out strings.Builder
	e := New()
	err := e.Render(strings.NewReader("{{.groupId}}/{{.Extra.readme}}"), "README.md.tpl", "UTF-8", &out, scope, extra)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.String() != "com.example/hello" {
		t.Fatalf("rendered = %q, want %q", out.String(), "com.example/hello")
	}
}

func TestEngineReportsTemplateParseErrors(t *testing.T) {
	scope := buildModel(t, `<archetype-script><output><model/></output></archetype-script>`)
	var out strings.Builder
	e := New()
	err := e.Render(strings.NewReader("{{.unterminated"), "broken.tpl", "UTF-8", &out, scope, nil)
	if err == nil {
		t.Fatal("expected a parse error")
	}
}
