// Command archetype is a thin CLI front-end over the archengine facade:
// it wires a script root, preset/default values and a terminal prompter
// into an Engine and generates a project directory.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helidon-io/archetype-engine/archengine"
	"github.com/helidon-io/archetype-engine/input"
	"github.com/helidon-io/archetype-engine/output"
	"github.com/helidon-io/archetype-engine/tplengine"
)

var (
	scriptRoot   string
	entryScript  string
	presetsFile  string
	defaultsFile string
	setValues    map[string]string
	projectDir   string
	batch        bool
	skipOption   bool
	failUnres    bool
)

func main() {
	root := &cobra.Command{
		Use:   "archetype",
		Short: "Generate a project from an archetype script tree",
		RunE:  runGenerate,
	}

	flags := root.Flags()
	flags.StringVar(&scriptRoot, "root", ".", "archetype script root directory")
	flags.StringVar(&entryScript, "entry", "archetype-script.xml", "entry script path, relative to --root")
	flags.StringVar(&presetsFile, "presets", "", "YAML file of preset key/value pairs")
	flags.StringVar(&defaultsFile, "defaults", "", "YAML file of default key/value pairs")
	flags.StringToStringVar(&setValues, "set", nil, "preset as key=value (repeatable; overrides --presets entries)")
	flags.StringVar(&projectDir, "output", "", "directory to generate into (defaults to ./<project.name>)")
	flags.BoolVar(&batch, "batch", false, "never prompt; resolve every input from presets/defaults only")
	flags.BoolVar(&skipOption, "skip-optional", false, "never prompt for optional inputs")
	flags.BoolVar(&failUnres, "fail-on-unresolved", true, "fail if a required input has no value in batch mode")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "archetype:", err)
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	presets, err := loadValuesFile(presetsFile)
	if err != nil {
		return err
	}
	for k, v := range setValues {
		presets[k] = v
	}
	defaults, err := loadValuesFile(defaultsFile)
	if err != nil {
		return err
	}

	eng := &archengine.Engine{
		ScriptRoot:            os.DirFS(scriptRoot),
		EntryScript:           entryScript,
		Presets:               presets,
		Defaults:              defaults,
		SkipOptional:          skipOption,
		FailOnUnresolvedInput: failUnres,
		TemplateEngines: map[string]output.TemplateEngine{
			"mustache": tplengine.New(),
			"default":  tplengine.New(),
		},
	}
	if !batch {
		eng.Prompter = &stdioPrompter{
			in:  bufio.NewReader(cmd.InOrStdin()),
			out: cmd.OutOrStdout(),
		}
	}

	// Sink's Root is resolved lazily: nameToPath only learns the
	// project's name partway through the input phase, after the Sink
	// itself has to exist, so the callback fills in Root once it knows it.
	sink := &output.DirSink{}
	dir, err := eng.Generate(sink, func(name string) (string, error) {
		dir := projectDir
		if dir == "" {
			if name == "" {
				name = "project"
			}
			dir = "./" + name
		}
		sink.Root = dir
		return dir, nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "generated project into %s\n", dir)
	return nil
}

// loadValuesFile reads a flat YAML map of dotted-path -> string from path,
// used for both --presets and --defaults. An empty path returns an empty
// map rather than erroring: both files are optional on the CLI surface.
func loadValuesFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading values file %s: %w", path, err)
	}
	var out map[string]string
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing values file %s: %w", path, err)
	}
	return out, nil
}

// stdioPrompter implements input.Prompter over a terminal's stdin/stdout.
type stdioPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *stdioPrompter) Prompt(pr input.Prompt) (string, error) {
	fmt.Fprintf(p.out, "%s", promptLine(pr))
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptLine(pr input.Prompt) string {
	var b strings.Builder
	b.WriteString(pr.Text)
	if pr.Help != "" {
		b.WriteString(" (")
		b.WriteString(pr.Help)
		b.WriteString(")")
	}
	if len(pr.Options) > 0 {
		for i, o := range pr.Options {
			b.WriteString(fmt.Sprintf("\n  %d) %s", i+1, o))
		}
		b.WriteString("\n")
	}
	if pr.Default != "" {
		b.WriteString(" [" + pr.Default + "]")
	}
	b.WriteString(": ")
	return b.String()
}
