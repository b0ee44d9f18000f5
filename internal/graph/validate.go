package graph

import (
	"fmt"

	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// requiredConfigKeys lists the node-kind-specific config fields that must be
// present and non-empty for compile to accept the node (§4.2). Kinds whose
// inputs may legitimately arrive entirely via context/ports (git-checkout,
// github-project, dynamic-agent, dynamic-command) are intentionally absent.
var requiredConfigKeys = map[registry.NodeKind]string{
	registry.KindAgent:        "prompt",
	registry.KindCommand:      "command",
	registry.KindSlashCommand: "name",
	registry.KindEval:         "source",
	registry.KindLLM:          "userPrompt",
	registry.KindHTTP:         "url",
}

// Validate checks a workflow document for structural soundness without
// compiling it, returning every issue found (§4.2). An empty slice means the
// workflow is compilable.
func Validate(reg *registry.Registry, wf Workflow) []Issue {
	var issues []Issue

	if len(wf.Nodes) == 0 {
		return []Issue{{Code: IssueEmptyGraph, Message: "workflow has no nodes"}}
	}

	nodeByID := make(map[string]Node, len(wf.Nodes))
	var triggerIDs []string
	executableCount := 0

	for _, n := range wf.Nodes {
		if _, dup := nodeByID[n.ID]; dup {
			issues = append(issues, Issue{Code: IssueDuplicateNodeID, Message: "duplicate node id", NodeID: n.ID})
			continue
		}
		nodeByID[n.ID] = n

		if !reg.IsKnownKind(n.Kind) {
			issues = append(issues, Issue{Code: IssueUnknownNodeKind, Message: fmt.Sprintf("unknown node kind %q", n.Kind), NodeID: n.ID})
			continue
		}
		switch n.Kind {
		case registry.KindTrigger:
			triggerIDs = append(triggerIDs, n.ID)
		case registry.KindEnd:
			// not executable
		default:
			executableCount++
		}

		if key, ok := requiredConfigKeys[n.Kind]; ok {
			if !hasNonEmptyConfig(n.Config, key) {
				issues = append(issues, Issue{
					Code:    IssueMissingRequiredConfig,
					Message: fmt.Sprintf("node kind %q requires non-empty config %q", n.Kind, key),
					NodeID:  n.ID,
				})
			}
		}
	}

	if len(triggerIDs) == 0 {
		issues = append(issues, Issue{Code: IssueMultipleTriggers, Message: "workflow has no trigger node"})
	} else if len(triggerIDs) > 1 {
		issues = append(issues, Issue{Code: IssueMultipleTriggers, Message: fmt.Sprintf("workflow has %d trigger nodes, want 1", len(triggerIDs))})
	}

	if executableCount == 0 {
		issues = append(issues, Issue{Code: IssueNoExecutableNode, Message: "workflow has no executable (non-trigger, non-end) node"})
	}

	incoming := make(map[string]int, len(wf.Nodes))
	outgoing := make(map[string]int, len(wf.Nodes))

	edgeIDs := make(map[string]bool, len(wf.Edges))
	for i, e := range wf.Edges {
		eid := e.ID
		if eid == "" {
			eid = fmt.Sprintf("edge#%d", i)
		}
		src, srcOK := nodeByID[e.Source]
		tgt, tgtOK := nodeByID[e.Target]
		if !srcOK {
			issues = append(issues, Issue{Code: IssueUnknownNode, Message: fmt.Sprintf("edge source %q does not exist", e.Source), EdgeID: eid})
		}
		if !tgtOK {
			issues = append(issues, Issue{Code: IssueUnknownNode, Message: fmt.Sprintf("edge target %q does not exist", e.Target), EdgeID: eid})
		}
		if !srcOK || !tgtOK {
			continue
		}
		outgoing[e.Source]++
		incoming[e.Target]++
		if edgeIDs[eid] {
			issues = append(issues, Issue{Code: IssueDuplicateNodeID, Message: "duplicate edge id", EdgeID: eid})
		}
		edgeIDs[eid] = true

		if e.SourcePort != "" && e.TargetPort != "" {
			if !portsCompatible(reg, wf, src, e.SourcePort, tgt, e.TargetPort) {
				issues = append(issues, Issue{
					Code:    IssueIncompatiblePorts,
					Message: fmt.Sprintf("port %q (%s) is not compatible with port %q (%s)", e.SourcePort, src.Kind, e.TargetPort, tgt.Kind),
					EdgeID:  eid,
				})
			}
		}
	}

	for _, id := range triggerIDs {
		if incoming[id] > 0 {
			issues = append(issues, Issue{Code: IssueTriggerHasIncoming, Message: "trigger node has incoming edges", NodeID: id})
		}
	}
	for _, n := range wf.Nodes {
		if n.Kind == registry.KindEnd && outgoing[n.ID] > 0 {
			issues = append(issues, Issue{Code: IssueEndHasOutgoing, Message: "end node has outgoing edges", NodeID: n.ID})
		}
	}

	issues = append(issues, checkTerminalReachability(wf, nodeByID)...)
	if len(triggerIDs) == 1 {
		issues = append(issues, checkReachableFromTrigger(wf, nodeByID, triggerIDs[0])...)
	}

	return issues
}

// hasNonEmptyConfig reports whether cfg[key] is present and not the zero
// value for its type (empty string, nil, zero-length slice/map).
func hasNonEmptyConfig(cfg map[string]any, key string) bool {
	v, ok := cfg[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// portsCompatible resolves the declared port types for a source output and a
// target input, falling back to a trigger's per-workflow declared outputs
// (registry.KindTrigger has no static port schema) and reports compatibility.
func portsCompatible(reg *registry.Registry, wf Workflow, src Node, srcPort string, tgt Node, tgtPort string) bool {
	outType, ok := resolveOutputType(reg, src, srcPort)
	if !ok {
		return true // port not statically declared; nothing to check
	}
	inType, ok := resolveInputType(reg, tgt, tgtPort)
	if !ok {
		return true
	}
	return reg.Compatible(outType, inType)
}

func resolveOutputType(reg *registry.Registry, n Node, port string) (registry.PortType, bool) {
	if n.Kind == registry.KindTrigger {
		return resolveTriggerOutputType(n, port)
	}
	ports, err := reg.PortsOf(n.Kind)
	if err != nil {
		return "", false
	}
	p, ok := ports.OutputByName(port)
	if !ok {
		return "", false
	}
	return p.Type, true
}

func resolveInputType(reg *registry.Registry, n Node, port string) (registry.PortType, bool) {
	ports, err := reg.PortsOf(n.Kind)
	if err != nil {
		return "", false
	}
	p, ok := ports.InputByName(port)
	if !ok {
		return "", false
	}
	return p.Type, true
}

// resolveTriggerOutputType reads the trigger's per-workflow declared output
// ports out of its config, shaped as config["outputs"] = []any{
// map[string]any{"name": "...", "type": "..."} , ...}.
func resolveTriggerOutputType(n Node, port string) (registry.PortType, bool) {
	raw, ok := n.Config["outputs"]
	if !ok {
		return "", false
	}
	list, ok := raw.([]any)
	if !ok {
		return "", false
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := m["name"].(string); name == port {
			if t, _ := m["type"].(string); t != "" {
				return registry.PortType(t), true
			}
			return "", false
		}
	}
	return "", false
}

// checkTerminalReachability ensures every executable node can reach a
// terminal point: an end node, or a node with no outgoing edges (§9). It
// computes the set of terminal-reaching nodes via a reverse BFS from every
// terminal node over the reversed adjacency, which also catches cycles that
// never escape (a cycle with no edge leaving it can never reach a terminal).
func checkTerminalReachability(wf Workflow, nodeByID map[string]Node) []Issue {
	reverse := make(map[string][]string)
	outDegree := make(map[string]int)
	for _, e := range wf.Edges {
		if _, ok := nodeByID[e.Source]; !ok {
			continue
		}
		if _, ok := nodeByID[e.Target]; !ok {
			continue
		}
		reverse[e.Target] = append(reverse[e.Target], e.Source)
		outDegree[e.Source]++
	}

	var terminals []string
	for _, n := range wf.Nodes {
		if n.Kind == registry.KindEnd || outDegree[n.ID] == 0 {
			terminals = append(terminals, n.ID)
		}
	}

	reachable := make(map[string]bool, len(nodeByID))
	queue := append([]string{}, terminals...)
	for _, t := range terminals {
		reachable[t] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, pred := range reverse[cur] {
			if !reachable[pred] {
				reachable[pred] = true
				queue = append(queue, pred)
			}
		}
	}

	var issues []Issue
	for _, n := range wf.Nodes {
		if n.Kind == registry.KindTrigger || n.Kind == registry.KindEnd {
			continue
		}
		if !reachable[n.ID] {
			issues = append(issues, Issue{
				Code:    IssueUnreachableTerminal,
				Message: "node cannot reach an end node or a node without outgoing edges",
				NodeID:  n.ID,
			})
		}
	}
	return issues
}

// checkReachableFromTrigger enforces the other half of §3's reachability
// invariant: every node must be reachable from the trigger by directed
// edges. checkTerminalReachability alone misses a disconnected component
// that happens to have its own path to a terminal (an orphan node with no
// incoming edges but an outgoing edge to some end node), since that node
// can still "reach a terminal" without ever being reachable from the
// trigger. This runs a forward BFS from triggerID over the same edge set.
func checkReachableFromTrigger(wf Workflow, nodeByID map[string]Node, triggerID string) []Issue {
	forward := make(map[string][]string)
	for _, e := range wf.Edges {
		if _, ok := nodeByID[e.Source]; !ok {
			continue
		}
		if _, ok := nodeByID[e.Target]; !ok {
			continue
		}
		forward[e.Source] = append(forward[e.Source], e.Target)
	}

	reachable := map[string]bool{triggerID: true}
	queue := []string{triggerID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range forward[cur] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	var issues []Issue
	for _, n := range wf.Nodes {
		if n.ID == triggerID || reachable[n.ID] {
			continue
		}
		issues = append(issues, Issue{
			Code:    IssueUnreachableFromTrigger,
			Message: "node is not reachable from the trigger node",
			NodeID:  n.ID,
		})
	}
	return issues
}
