package tools

import (
	"context"
	"os"
)

// LoadSkillArgs is the jsonschema-tagged argument shape for load_skill.
type LoadSkillArgs struct {
	Name string `json:"name" jsonschema:"required,description=Skill file name, without extension, under the skills directory"`
}

// SkillTool reads a named markdown skill definition from a directory
// and hands its contents back as the tool result, so the calling
// agent can fold it into its own context.
type SkillTool struct {
	dir string
}

func NewSkillTool(dir string) *SkillTool { return &SkillTool{dir: dir} }

func (t *SkillTool) Name() string        { return "load_skill" }
func (t *SkillTool) Description() string { return "Loads a named skill definition from the configured skills directory." }
func (t *SkillTool) Schema() map[string]any { return schemaFor(LoadSkillArgs{}) }

func (t *SkillTool) Call(ctx context.Context, tc Context, arguments string) (Result, error) {
	var args LoadSkillArgs
	if err := unmarshalArgs(arguments, &args); err != nil {
		return Result{}, err
	}

	resolved, err := ResolvePath(t.dir, args.Name+".md")
	if err != nil {
		return Result{}, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Result{Output: "skill not found: " + args.Name, IsError: true}, nil
	}
	return Result{Output: string(data)}, nil
}
