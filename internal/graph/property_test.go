package graph

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// chainWorkflow builds a linear trigger -> agent[0] -> ... -> agent[n-1] -> end
// workflow, optionally wiring the trigger's single declared output port
// ("value", of outType) into the first agent's "prompt" input.
func chainWorkflow(n int, outType registry.PortType, wireTyped bool) Workflow {
	nodes := []Node{
		{ID: "trigger", Kind: registry.KindTrigger, Config: map[string]any{
			"outputs": []any{map[string]any{"name": "value", "type": string(outType)}},
		}},
	}
	var edges []Edge
	prev := "trigger"
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("agent-%d", i)
		nodes = append(nodes, Node{ID: id, Kind: registry.KindAgent, Config: map[string]any{"prompt": "x"}})
		e := Edge{ID: fmt.Sprintf("e-%d", i), Source: prev, Target: id}
		if prev == "trigger" && wireTyped {
			e.SourcePort = "value"
			e.TargetPort = "prompt"
		}
		edges = append(edges, e)
		prev = id
	}
	nodes = append(nodes, Node{ID: "end", Kind: registry.KindEnd})
	edges = append(edges, Edge{ID: "e-end", Source: prev, Target: "end"})
	return Workflow{ID: "wf-prop", Nodes: nodes, Edges: edges}
}

// TestPropertyCompileIsDeterministic exercises §8 property 1: compiling the
// same workflow and initial context twice yields plans with the same trigger,
// executable order, adjacency, and port mappings, across a range of chain
// lengths.
func TestPropertyCompileIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	reg := registry.New()

	properties.Property("compile(wf) == compile(wf)", prop.ForAll(
		func(n int) bool {
			wf := chainWorkflow(n, registry.TypeString, true)
			ctx := map[string]any{"value": "seed"}
			first, issues1 := Compile(reg, wf, ctx, nil)
			second, issues2 := Compile(reg, wf, ctx, nil)
			if len(issues1) != 0 || len(issues2) != 0 {
				return false
			}
			return plansEqual(first, second)
		},
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

// TestPropertyPortMappingsAreTypeSound exercises §8 property 2: every
// portMapping the compiler records connects two ports the registry considers
// compatible.
func TestPropertyPortMappingsAreTypeSound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	reg := registry.New()

	portTypes := []registry.PortType{
		registry.TypeString, registry.TypeNumber, registry.TypeBoolean,
		registry.TypeObject, registry.TypeArray, registry.TypeAny,
	}

	properties.Property("every recorded port mapping is compatible", prop.ForAll(
		func(typeIdx int, n int) bool {
			outType := portTypes[typeIdx%len(portTypes)]
			wf := chainWorkflow(n, outType, true)
			plan, issues := Compile(reg, wf, map[string]any{"value": "x"}, nil)
			if len(issues) > 0 {
				// Incompatible wiring is caught by validate and never compiled.
				return plan == nil
			}
			for target, source := range plan.PortMappings {
				tgtNode := findNode(wf, target.NodeID)
				srcNode := findNode(wf, source.NodeID)
				outT, ok1 := resolveOutputType(reg, srcNode, source.Port)
				inT, ok2 := resolveInputType(reg, tgtNode, target.Port)
				if !ok1 || !ok2 || !reg.Compatible(outT, inT) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(portTypes)-1),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

func findNode(wf Workflow, id string) Node {
	for _, n := range wf.Nodes {
		if n.ID == id {
			return n
		}
	}
	return Node{}
}

func plansEqual(a, b *Plan) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.TriggerID != b.TriggerID || len(a.Executable) != len(b.Executable) {
		return false
	}
	for i := range a.Executable {
		if a.Executable[i].ID != b.Executable[i].ID {
			return false
		}
	}
	if len(a.Adjacency) != len(b.Adjacency) {
		return false
	}
	for k, v := range a.Adjacency {
		bv, ok := b.Adjacency[k]
		if !ok || len(v) != len(bv) {
			return false
		}
		for i := range v {
			if v[i] != bv[i] {
				return false
			}
		}
	}
	if len(a.PortMappings) != len(b.PortMappings) {
		return false
	}
	for k, v := range a.PortMappings {
		if b.PortMappings[k] != v {
			return false
		}
	}
	return true
}
