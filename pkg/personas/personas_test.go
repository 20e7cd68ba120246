package personas

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBuiltIn(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadBuiltIn(); err != nil {
		t.Fatalf("LoadBuiltIn: %v", err)
	}
	if r.Count() == 0 {
		t.Fatal("expected builtin personas to be registered")
	}
	p, ok := r.Get("default")
	if !ok {
		t.Fatal("expected a persona named default")
	}
	if p.Prompt == "" || p.Voice == "" {
		t.Errorf("default persona is missing required fields: %+v", p)
	}
}

func TestUpsertReplaces(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Persona{Name: "x", Prompt: "a dog", Voice: "alloy"})
	r.Upsert(Persona{Name: "x", Prompt: "a different dog", Voice: "echo"})

	if r.Count() != 1 {
		t.Fatalf("expected 1 persona, got %d", r.Count())
	}
	p, _ := r.Get("x")
	if p.Voice != "echo" {
		t.Errorf("expected replacement to win, got voice %q", p.Voice)
	}
}

func TestValidateRejectsUnknownVoice(t *testing.T) {
	p := Persona{Name: "bad", Prompt: "p", Voice: "baritone"}
	if err := p.Validate(); err == nil {
		t.Error("expected an error for an unknown voice")
	}
}

func TestLoadFileMerges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	doc := `personas:
  - name: Rusty
    voice: verse
    prompt: A rusty prototype who creaks when he walks.
    default_motivation: Find an oil can.
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadBuiltIn(); err != nil {
		t.Fatal(err)
	}
	before := r.Count()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if r.Count() != before+1 {
		t.Errorf("expected %d personas after merge, got %d", before+1, r.Count())
	}
	p, ok := r.Get("Rusty")
	if !ok || p.Motivation() != "Find an oil can." {
		t.Errorf("merged persona wrong: %+v ok=%v", p, ok)
	}
}

func TestMotivationFallback(t *testing.T) {
	p := Persona{Name: "m", Prompt: "p", Voice: "alloy"}
	if p.Motivation() == "" {
		t.Error("expected a fallback motivation")
	}
}
