package graph

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
)

// Compile converts a workflow document into an immutable Plan. It never
// panics and never mutates wf; on any structural problem it returns a nil
// Plan and the issues found by Validate (§4.2). Compile performs no I/O.
//
// logger may be nil; when non-nil it receives a warning for every function
// transition, which cannot be statically verified at compile time.
func Compile(reg *registry.Registry, wf Workflow, initialContext map[string]any, logger telemetry.Logger) (*Plan, []Issue) {
	if issues := Validate(reg, wf); len(issues) > 0 {
		return nil, issues
	}

	nodeByID := make(map[string]Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodeByID[n.ID] = n
	}

	plan := &Plan{
		WorkflowID:      wf.ID,
		ProjectID:       wf.ProjectID,
		Adjacency:       make(map[string][]string),
		PortMappings:    make(map[PortKey]PortKey),
		Transitions:     make(map[string]Transition),
		EndMappings:     make(map[string]string),
		EndTargets:      make(map[string]string),
		InitialPortData: make(map[string]map[string]any),
		EndNodeIDs:      make(map[string]bool),
	}

	for _, n := range wf.Nodes {
		switch n.Kind {
		case registry.KindTrigger:
			plan.TriggerID = n.ID
		case registry.KindEnd:
			plan.EndNodeIDs[n.ID] = true
			if status, _ := n.Config["targetStatus"].(string); status != "" {
				plan.EndMappings[n.ID] = status
			}
		default:
			plan.Executable = append(plan.Executable, NodeDescriptor{ID: n.ID, Kind: n.Kind, Config: n.Config})
		}
	}

	for _, e := range wf.Edges {
		plan.Adjacency[e.Source] = append(plan.Adjacency[e.Source], e.Target)
		if e.SourcePort == "" || e.TargetPort == "" {
			continue
		}
		src, tgt := nodeByID[e.Source], nodeByID[e.Target]
		if _, ok := resolveOutputType(reg, src, e.SourcePort); !ok {
			continue
		}
		if _, ok := resolveInputType(reg, tgt, e.TargetPort); !ok {
			continue
		}
		plan.PortMappings[PortKey{NodeID: e.Target, Port: e.TargetPort}] = PortKey{NodeID: e.Source, Port: e.SourcePort}
	}

	for _, n := range wf.Nodes {
		raw, ok := n.Config["transition"]
		if !ok {
			continue
		}
		spec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		t, ok := parseTransition(spec)
		if !ok {
			continue
		}
		plan.Transitions[n.ID] = t
		if t.Kind == TransitionFunction && logger != nil {
			logger.Warn(context.Background(), "function transition cannot be statically verified", "nodeId", n.ID)
		}
	}

	// Implicit adjacency fallback: for any executable or trigger node with no
	// configured transition, if its first declared edge target is an end
	// node, record the mapping so the interpreter can resolve the reached end
	// node after the adjacency-based next-selector returns the End sentinel.
	for _, n := range wf.Nodes {
		if n.Kind == registry.KindEnd {
			continue
		}
		if _, hasTransition := plan.Transitions[n.ID]; hasTransition {
			continue
		}
		targets := plan.Adjacency[n.ID]
		if len(targets) == 0 {
			continue
		}
		if plan.EndNodeIDs[targets[0]] {
			plan.EndTargets[n.ID] = targets[0]
		}
	}

	if plan.TriggerID != "" {
		plan.InitialPortData[plan.TriggerID] = triggerOutputPortData(nodeByID[plan.TriggerID], initialContext)
	}

	return plan, nil
}

// parseTransition decodes a node's "transition" config block into a
// Transition. Unrecognized or malformed blocks are rejected (ok=false),
// causing compile to fall back to adjacency for that node rather than fail
// the whole workflow, matching the permissive authoring surface of §3.
func parseTransition(spec map[string]any) (Transition, bool) {
	kind, _ := spec["type"].(string)
	switch TransitionKind(kind) {
	case TransitionSimple:
		target, _ := spec["target"].(string)
		if target == "" {
			return Transition{}, false
		}
		return Transition{Kind: TransitionSimple, Target: target}, true
	case TransitionConditional:
		path, _ := spec["path"].(string)
		then, _ := spec["then"].(string)
		els, _ := spec["else"].(string)
		if path == "" || then == "" {
			return Transition{}, false
		}
		return Transition{Kind: TransitionConditional, Path: path, Then: then, Else: els}, true
	case TransitionSwitch:
		path, _ := spec["path"].(string)
		if path == "" {
			return Transition{}, false
		}
		cases := make(map[string]string)
		if raw, ok := spec["cases"].(map[string]any); ok {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					cases[k] = s
				}
			}
		}
		def, _ := spec["default"].(string)
		return Transition{Kind: TransitionSwitch, Path: path, Cases: cases, Default: def}, true
	case TransitionFunction:
		source, _ := spec["source"].(string)
		if source == "" {
			return Transition{}, false
		}
		return Transition{Kind: TransitionFunction, Source: source}, true
	}
	return Transition{}, false
}

// triggerOutputPortData reads the trigger's declared output ports
// (config["outputs"] = []{name,type}) out of the execution's initial
// context, seeding the strict port-data side of the execution. The full
// initialContext is separately merged wholesale into the execution's flat
// Context by the interpreter; InitialPortData only ever holds the subset the
// trigger declares as typed outputs.
func triggerOutputPortData(trigger Node, initialContext map[string]any) map[string]any {
	data := make(map[string]any)
	raw, ok := trigger.Config["outputs"]
	if !ok {
		return data
	}
	list, ok := raw.([]any)
	if !ok {
		return data
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		if v, present := initialContext[name]; present {
			data[name] = v
		}
	}
	return data
}
