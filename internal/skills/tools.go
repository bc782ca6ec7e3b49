package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/outpostrun/conductor/internal/agent"
	exectools "github.com/outpostrun/conductor/internal/tools/exec"
)

// SkillToolSpec defines a tool provided by a skill.
type SkillToolSpec struct {
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description" yaml:"description"`
	Schema         map[string]any `json:"schema" yaml:"schema"`
	Command        string         `json:"command" yaml:"command"`
	Script         string         `json:"script" yaml:"script"`
	TimeoutSeconds int            `json:"timeout_seconds" yaml:"timeout_seconds"`
	WorkingDir     string         `json:"cwd" yaml:"cwd"`
}

// BuildSkillTools creates registered tools from a skill definition. Each
// tool shells out to the skill's command or script via execManager.
func BuildSkillTools(skill *SkillEntry, execManager *exectools.Manager) []*agent.RegisteredTool {
	if skill == nil || skill.Metadata == nil || len(skill.Metadata.Tools) == 0 || execManager == nil {
		return nil
	}

	tools := make([]*agent.RegisteredTool, 0, len(skill.Metadata.Tools))
	for _, spec := range skill.Metadata.Tools {
		if strings.TrimSpace(spec.Name) == "" {
			continue
		}
		st := &skillTool{skill: skill, spec: spec, manager: execManager}
		tools = append(tools, &agent.RegisteredTool{
			Descriptor: st.descriptor(),
			Fn:         st.run,
		})
	}
	return tools
}

type skillTool struct {
	skill   *SkillEntry
	spec    SkillToolSpec
	manager *exectools.Manager
}

func (t *skillTool) descriptor() agent.ToolDescriptor {
	description := t.spec.Description
	if description == "" {
		description = "Skill tool: " + t.spec.Name
	}
	return agent.ToolDescriptor{
		Name:        t.spec.Name,
		Description: description,
		Parameters:  schemaToParams(t.spec.Schema),
	}
}

// schemaToParams derives the reduced ParamSpec vocabulary from an arbitrary
// JSON-Schema-shaped map, falling back to an untyped object parameter when
// the shape can't be mapped.
func schemaToParams(schema map[string]any) []agent.ParamSpec {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}
	required := map[string]bool{}
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	params := make([]agent.ParamSpec, 0, len(names))
	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		params = append(params, agent.ParamSpec{
			Name:        name,
			Type:        jsonTypeToParam(prop["type"]),
			Description: fmt.Sprint(prop["description"]),
			Required:    required[name],
		})
	}
	return params
}

func jsonTypeToParam(t any) agent.ParamType {
	switch t {
	case "integer":
		return agent.ParamInt
	case "number":
		return agent.ParamFloat
	case "boolean":
		return agent.ParamBool
	case "array":
		return agent.ParamArray
	case "object":
		return agent.ParamObject
	default:
		return agent.ParamString
	}
}

func (t *skillTool) run(ctx context.Context, args map[string]any) (string, error) {
	if t.manager == nil {
		return "", fmt.Errorf("exec manager unavailable")
	}
	command := strings.TrimSpace(t.spec.Command)
	script := strings.TrimSpace(t.spec.Script)
	if command == "" {
		command = "bash"
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}

	input := string(argsJSON)
	if script != "" {
		scriptPath := filepath.Join(t.skill.Path, script)
		content, err := os.ReadFile(scriptPath)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		input = string(content)
	}

	env := map[string]string{
		"NEXUS_TOOL_INPUT": string(argsJSON),
		"NEXUS_TOOL_NAME":  t.spec.Name,
	}
	if t.skill != nil {
		env["NEXUS_SKILL_NAME"] = t.skill.Name
		env["NEXUS_SKILL_DIR"] = t.skill.Path
	}

	cwd := strings.TrimSpace(t.spec.WorkingDir)
	if cwd == "" {
		cwd = t.skill.Path
	}
	timeout := time.Duration(t.spec.TimeoutSeconds) * time.Second

	result, err := t.manager.RunCommand(ctx, command, cwd, env, input, timeout)
	if err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(payload), nil
}
