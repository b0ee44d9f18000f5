package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
)

func s1Workflow() Workflow {
	return Workflow{
		ID: "wf-s1",
		Nodes: []Node{
			{ID: "trigger", Kind: registry.KindTrigger, Config: map[string]any{
				"outputs": []any{map[string]any{"name": "prompt", "type": "string"}},
			}},
			{ID: "llm", Kind: registry.KindLLM, Config: map[string]any{"userPrompt": "summarize"}},
			{ID: "end", Kind: registry.KindEnd, Config: map[string]any{"targetStatus": "done"}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "trigger", SourcePort: "prompt", Target: "llm", TargetPort: "prompt"},
			{ID: "e2", Source: "llm", Target: "end"},
		},
	}
}

func TestCompileS1ProducesExpectedPlan(t *testing.T) {
	reg := registry.New()
	wf := s1Workflow()
	plan, issues := Compile(reg, wf, map[string]any{"prompt": "hello"}, telemetry.NewNoopLogger())
	require.Empty(t, issues)
	require.NotNil(t, plan)

	require.Equal(t, "trigger", plan.TriggerID)
	require.Len(t, plan.Executable, 1)
	require.Equal(t, "llm", plan.Executable[0].ID)

	require.Equal(t, PortKey{NodeID: "trigger", Port: "prompt"}, plan.PortMappings[PortKey{NodeID: "llm", Port: "prompt"}])

	require.Equal(t, []string{"llm"}, plan.Adjacency["trigger"])
	require.Equal(t, []string{"end"}, plan.Adjacency["llm"])

	require.True(t, plan.IsEndNode("end"))
	require.Equal(t, "done", plan.EndMappings["end"])
	require.Equal(t, "end", plan.EndTargets["llm"])

	require.Equal(t, map[string]any{"prompt": "hello"}, plan.InitialPortData["trigger"])
}

func TestCompileReturnsIssuesInsteadOfPanicking(t *testing.T) {
	reg := registry.New()
	plan, issues := Compile(reg, Workflow{}, nil, nil)
	require.Nil(t, plan)
	require.NotEmpty(t, issues)
}

func TestCompileIsDeterministic(t *testing.T) {
	reg := registry.New()
	wf := s1Workflow()
	ctx := map[string]any{"prompt": "hello"}

	first, issues := Compile(reg, wf, ctx, nil)
	require.Empty(t, issues)
	second, issues := Compile(reg, wf, ctx, nil)
	require.Empty(t, issues)

	require.Equal(t, first, second)
}

func TestCompileS3RequiredPortUnresolvedSurvivesCompile(t *testing.T) {
	// S3: trigger declares no outputs at all, llm still requires "prompt".
	// Compile must succeed; resolving the missing port is the interpreter's
	// job at step time (PortUnresolved), not the compiler's.
	reg := registry.New()
	wf := Workflow{
		ID: "wf-s3",
		Nodes: []Node{
			{ID: "trigger", Kind: registry.KindTrigger},
			{ID: "llm", Kind: registry.KindLLM, Config: map[string]any{"userPrompt": "x"}},
			{ID: "end", Kind: registry.KindEnd},
		},
		Edges: []Edge{
			{ID: "e1", Source: "trigger", Target: "llm"},
			{ID: "e2", Source: "llm", Target: "end"},
		},
	}
	plan, issues := Compile(reg, wf, map[string]any{}, nil)
	require.Empty(t, issues)
	require.NotNil(t, plan)
	_, wired := plan.PortMappings[PortKey{NodeID: "llm", Port: "prompt"}]
	require.False(t, wired)
}

func TestCompileParsesAllTransitionKinds(t *testing.T) {
	reg := registry.New()
	wf := Workflow{
		ID: "wf-transitions",
		Nodes: []Node{
			{ID: "trigger", Kind: registry.KindTrigger},
			{ID: "simple", Kind: registry.KindAgent, Config: map[string]any{
				"prompt":     "x",
				"transition": map[string]any{"type": "simple", "target": "cond"},
			}},
			{ID: "cond", Kind: registry.KindAgent, Config: map[string]any{
				"prompt": "x",
				"transition": map[string]any{
					"type": "conditional", "path": "ok", "then": "sw", "else": "end",
				},
			}},
			{ID: "sw", Kind: registry.KindAgent, Config: map[string]any{
				"prompt": "x",
				"transition": map[string]any{
					"type": "switch", "path": "status",
					"cases":   map[string]any{"a": "fn", "b": "end"},
					"default": "end",
				},
			}},
			{ID: "fn", Kind: registry.KindAgent, Config: map[string]any{
				"prompt":     "x",
				"transition": map[string]any{"type": "function", "source": "return 'end'"},
			}},
			{ID: "end", Kind: registry.KindEnd},
		},
		Edges: []Edge{
			{ID: "e0", Source: "trigger", Target: "simple"},
			{ID: "e1", Source: "simple", Target: "cond"},
			{ID: "e2", Source: "cond", Target: "sw"},
			{ID: "e3", Source: "cond", Target: "end"},
			{ID: "e4", Source: "sw", Target: "fn"},
			{ID: "e5", Source: "sw", Target: "end"},
			{ID: "e6", Source: "fn", Target: "end"},
		},
	}
	plan, issues := Compile(reg, wf, nil, telemetry.NewNoopLogger())
	require.Empty(t, issues)

	require.Equal(t, Transition{Kind: TransitionSimple, Target: "cond"}, plan.Transitions["simple"])
	require.Equal(t, Transition{Kind: TransitionConditional, Path: "ok", Then: "sw", Else: "end"}, plan.Transitions["cond"])
	require.Equal(t, TransitionSwitch, plan.Transitions["sw"].Kind)
	require.Equal(t, "end", plan.Transitions["sw"].Cases["b"])
	require.Equal(t, TransitionFunction, plan.Transitions["fn"].Kind)
}
