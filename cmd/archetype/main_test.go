package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/helidon-io/archetype-engine/input"
)

func TestLoadPresetsEmptyPath(t *testing.T) {
	got, err := loadValuesFile("")
	if err != nil {
		t.Fatalf("loadValuesFile(\"\") error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("loadValuesFile(\"\") = %v, want empty map", got)
	}
}

func TestLoadPresetsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	if err := os.WriteFile(path, []byte("project.name: widget\ntheme: dark\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := loadValuesFile(path)
	if err != nil {
		t.Fatalf("loadValuesFile: %v", err)
	}
	if got["project.name"] != "widget" || got["theme"] != "dark" {
		t.Fatalf("loadValuesFile = %v, want project.name=widget theme=dark", got)
	}
}

func TestPromptLineIncludesOptionsAndDefault(t *testing.T) {
	got := promptLine(input.Prompt{
		Text:    "Pick a theme",
		Help:    "controls the color scheme",
		Default: "dark",
		Options: []string{"dark", "light"},
	})
	want := "Pick a theme (controls the color scheme)\n  1) dark\n  2) light\n [dark]: "
	if got != want {
		t.Fatalf("promptLine = %q, want %q", got, want)
	}
}
