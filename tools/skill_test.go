package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSkillToolLoadsExistingSkill(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greet.md"), []byte("# Greet\nSay hello."), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tool := NewSkillTool(dir)
	res, err := tool.Call(context.Background(), Context{}, `{"name":"greet"}`)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.IsError || res.Output != "# Greet\nSay hello." {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSkillToolMissingSkillReturnsErrorResult(t *testing.T) {
	dir := t.TempDir()
	tool := NewSkillTool(dir)
	res, err := tool.Call(context.Background(), Context{}, `{"name":"nope"}`)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError for missing skill")
	}
}

func TestSkillToolRejectsEscapingName(t *testing.T) {
	dir := t.TempDir()
	tool := NewSkillTool(dir)
	if _, err := tool.Call(context.Background(), Context{}, `{"name":"../outside"}`); err == nil {
		t.Fatal("expected containment error for escaping skill name")
	}
}

func TestSkillToolNameAndSchema(t *testing.T) {
	tool := NewSkillTool(t.TempDir())
	if tool.Name() != "load_skill" {
		t.Fatalf("got name %q", tool.Name())
	}
	if tool.Schema() == nil {
		t.Fatal("expected non-nil schema")
	}
}
