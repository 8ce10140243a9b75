// Package archengine implements the top-level engine facade: resolve every
// declared input, build the merged output model, and generate a project
// from it, two phases run over one persistent context tree.
//
// Engine is a single exported facade with exported configuration fields,
// one-time setup behind sync.Once, and an injected *slog.Logger defaulting
// to slog.Default(): a CLI invocation of the engine has no other channel
// for generation progress.
package archengine

import (
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/helidon-io/archetype-engine/ast"
	"github.com/helidon-io/archetype-engine/ctxscope"
	"github.com/helidon-io/archetype-engine/input"
	"github.com/helidon-io/archetype-engine/model"
	"github.com/helidon-io/archetype-engine/output"
	"github.com/helidon-io/archetype-engine/value"
	"github.com/helidon-io/archetype-engine/walker"
	"github.com/helidon-io/archetype-engine/xmlscript"
)

// dateLayout formats the "current.date" context seed, matching
// java.util.Date's default toString() layout so templates written against
// Maven-style archetypes render the same date shape.
const dateLayout = "Mon Jan 02 15:04:05 MST 2006"

// Engine generates a project directory from an archetype script tree. All
// knobs are exported configuration fields rather than constructor
// parameters; the zero value plus ScriptRoot/EntryScript is usable.
type Engine struct {
	// ScriptRoot is the filesystem the entry script, and everything it
	// sources/execs/reads, is resolved against.
	ScriptRoot fs.FS
	// EntryScript is ScriptRoot's path to the root archetype-script
	// document.
	EntryScript string

	// Presets seeds read-only EXTERNAL values into the root context scope
	// before the input phase runs. Keys are dotted ContextPath strings
	// ("project.name"); an input whose id resolves to an already-seeded
	// path is never prompted.
	Presets map[string]string
	// Defaults seeds fallback values consulted by the input phase before an
	// input's own `default` attribute, but (unlike Presets) still fully
	// overridable by a user response.
	Defaults map[string]string

	// SkipOptional and FailOnUnresolvedInput mirror input.Options.
	SkipOptional          bool
	FailOnUnresolvedInput bool

	// Prompter drives interactive resolution. A nil Prompter runs the input
	// phase in batch mode.
	Prompter input.Prompter

	// AdditionalVisitors run alongside the primary visitor of the input walk
	// and of the output-generating walk (not the model-building walk),
	// composed per walker.Walk's visitor composition rule: a
	// SkipSubtree/Terminate from the primary visitor short-circuits them
	// for that node.
	AdditionalVisitors []walker.NodeVisitor

	// TemplateEngines resolves a template/templates `engine` attribute to
	// its renderer; tplengine.New() is the reference engine.
	TemplateEngines map[string]output.TemplateEngine

	// Logger configures structured logging for internal events: Debug per
	// node visited, Info per resolved input, Info per output action.
	// Defaults to slog.Default() when nil.
	Logger *slog.Logger

	init   sync.Once
	logger *slog.Logger
}

func (e *Engine) initOnce() {
	e.init.Do(func() {
		e.logger = slog.Default()
		if e.Logger != nil {
			e.logger = e.Logger
		}
	})
}

// Generate runs the input phase, builds the merged model, and generates
// output into the directory nameToPath resolves for the final
// "project.name" value. nameToPath receives "" if no "project.name" value
// was ever resolved. It returns the resolved project directory.
func (e *Engine) Generate(sink output.Sink, nameToPath func(projectName string) (string, error)) (string, error) {
	e.initOnce()

	loader := xmlscript.NewLoader(e.ScriptRoot)
	script, err := loader.Load(e.EntryScript)
	if err != nil {
		return "", fmt.Errorf("archengine: loading %s: %w", e.EntryScript, err)
	}

	root := ctxscope.NewRoot()
	if err := e.seedAmbientContext(root); err != nil {
		return "", err
	}
	if err := e.seedCallerValues(root, e.Presets, ctxscope.KindExternal); err != nil {
		return "", err
	}

	if err := e.runInputPhase(loader, script, root); err != nil {
		return "", err
	}

	projectName := e.lookupString(root, "project.name")
	projectDir, err := nameToPath(projectName)
	if err != nil {
		return "", fmt.Errorf("archengine: resolving project directory for %q: %w", projectName, err)
	}
	if err := seedPath(root, "project.directory", value.NewString(projectDir), ctxscope.KindExternal); err != nil {
		return "", err
	}

	if err := e.runOutputPhase(loader, script, root, sink); err != nil {
		return "", err
	}
	return projectDir, nil
}

// seedAmbientContext seeds the engine-computed context values:
// "current.date", formatted against dateLayout, seeded before the input
// phase so a preset/variable/model value can interpolate it immediately.
func (e *Engine) seedAmbientContext(root *ctxscope.Scope) error {
	now := time.Now().Format(dateLayout)
	return seedPath(root, "current.date", value.NewString(now), ctxscope.KindExternal)
}

// seedCallerValues writes each path → string pair as a value of the given
// provenance kind, in map-iteration order; deterministic ordering across
// distinct paths doesn't matter here since each seed is independent and
// none can conflict with another (distinct keys).
func (e *Engine) seedCallerValues(root *ctxscope.Scope, values map[string]string, kind ctxscope.ValueKind) error {
	for path, raw := range values {
		if err := seedPath(root, path, value.NewString(raw), kind); err != nil {
			return err
		}
	}
	return nil
}

// seedPath writes v at the scope addressed by dotted, creating any missing
// intermediate scopes, consistent with how the input resolver itself
// resolves and writes a dotted id: the value
// lives in the scope enclosing the path's last segment. Materialize (not
// GetOrCreate) so the seeded scope's visibility stays UNSET: the input
// declaration that later claims the same id still gets to fix GLOBAL/LOCAL
// without a ScopeConflict against the seed.
func seedPath(root *ctxscope.Scope, dotted string, v value.Value, kind ctxscope.ValueKind) error {
	p, err := ctxscope.ParsePath(dotted)
	if err != nil {
		return fmt.Errorf("archengine: seeding %q: %w", dotted, err)
	}
	scope, err := root.Materialize(p)
	if err != nil {
		return fmt.Errorf("archengine: seeding %q: %w", dotted, err)
	}
	segs := p.Segments()
	last := segs[len(segs)-1]
	if err := scope.Parent().PutValue(last, v, kind); err != nil {
		return fmt.Errorf("archengine: seeding %q: %w", dotted, err)
	}
	return nil
}

// lookupString reads dotted as a best-effort string, returning "" if the
// path was never resolved or doesn't convert; nameToPath must still be
// called so a caller-defined fallback (e.g. a generated name) can run.
func (e *Engine) lookupString(root *ctxscope.Scope, dotted string) string {
	p, err := ctxscope.ParsePath(dotted)
	if err != nil {
		return ""
	}
	v, found, err := root.GetValue(p)
	if err != nil || !found {
		return ""
	}
	s, err := v.AsString()
	if err != nil {
		return ""
	}
	return s
}

func (e *Engine) runInputPhase(loader ast.ScriptLoader, script *ast.Script, root *ctxscope.Scope) error {
	opts := input.Options{
		SkipOptional:          e.SkipOptional,
		FailOnUnresolvedInput: e.FailOnUnresolvedInput,
		ExternalDefaults:      e.Defaults,
	}
	var resolver *input.InputResolver
	if e.Prompter != nil {
		resolver = input.NewInteractive(e.Prompter, opts)
	} else {
		resolver = input.NewBatch(opts)
	}

	w := walker.New(loader, script, ".", root)
	visitors := append([]walker.NodeVisitor{&loggingVisitor{e.logger, "input", resolver}}, e.AdditionalVisitors...)
	if err := w.Walk(script.Root, visitors...); err != nil {
		return fmt.Errorf("archengine: input phase: %w", err)
	}
	return nil
}

// runOutputPhase re-walks the script twice over the already-resolved
// context: once accumulating the merged model, once generating output. Both
// walks put a fresh batch InputResolver in front as the primary visitor;
// every input already has a value by now, so it never prompts or fails. Its
// only job is to replay the input phase's traversal decisions (boolean
// false skips its subtree, an enum/list option is entered only when the
// resolved value selects it) so the model builder and the generator see
// exactly the subtrees the resolved inputs chose.
func (e *Engine) runOutputPhase(loader ast.ScriptLoader, script *ast.Script, root *ctxscope.Scope, sink output.Sink) error {
	opts := input.Options{
		SkipOptional:          e.SkipOptional,
		FailOnUnresolvedInput: e.FailOnUnresolvedInput,
		ExternalDefaults:      e.Defaults,
	}

	modelWalker := walker.New(loader, script, ".", root)
	modelResolver := model.NewResolver(e.ScriptRoot)
	modelVisitors := []walker.NodeVisitor{&loggingVisitor{e.logger, "model", input.NewBatch(opts)}, modelResolver}
	if err := modelWalker.Walk(script.Root, modelVisitors...); err != nil {
		return fmt.Errorf("archengine: model phase: %w", err)
	}
	mergedModel := modelResolver.Model()
	mergedModel.Finalize()

	gen := output.NewGenerator(e.ScriptRoot, sink, mergedModel, e.TemplateEngines)
	outputWalker := walker.New(loader, script, ".", root)
	visitors := append([]walker.NodeVisitor{&loggingVisitor{e.logger, "output", input.NewBatch(opts)}, gen}, e.AdditionalVisitors...)
	if err := outputWalker.Walk(script.Root, visitors...); err != nil {
		return fmt.Errorf("archengine: output phase: %w", err)
	}
	return nil
}
