// Package graph implements the Graph Compiler (component B): it converts a
// persisted workflow document into an immutable Plan ready for the
// Interpreter, and validates a document without compiling it.
package graph

import (
	"time"

	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// End is the sentinel transition target meaning "terminate this execution".
const End = "END"

type (
	// Workflow is the persisted, editable graph (§3).
	Workflow struct {
		ID                   string         `json:"id"`
		ProjectID            string         `json:"projectId"`
		Name                 string         `json:"name"`
		Description          string         `json:"description,omitempty"`
		UpdatedAt            time.Time      `json:"updatedAt"`
		Nodes                []Node         `json:"nodes"`
		Edges                []Edge         `json:"edges"`
		InitialContext       map[string]any `json:"initialContext,omitempty"`
		EncryptedEnvironment []byte         `json:"encryptedEnvironment,omitempty"`
		DockerImage          string         `json:"dockerImage,omitempty"`
		// RemoteExecution selects the Dispatcher's remote path (§4.5). Local by default.
		RemoteExecution bool `json:"remoteExecution,omitempty"`
	}

	// Node is a single node record within a workflow.
	Node struct {
		ID       string            `json:"id"`
		Kind     registry.NodeKind `json:"kind"`
		Position Position          `json:"position"`
		// Config carries node-kind-specific configuration: agent prompts, command
		// strings, the trigger's declared output ports, the end node's
		// targetStatus, and an optional "transition" block (parsed into a
		// Transition by parseTransition).
		Config map[string]any `json:"config,omitempty"`
	}

	// Position is the canvas position of a node; carried through unchanged by
	// the compiler since it has no execution semantics.
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Edge is a directed connection between two nodes, optionally wiring typed
	// ports (§3).
	Edge struct {
		ID         string `json:"id"`
		Source     string `json:"source"`
		SourcePort string `json:"sourcePort,omitempty"`
		Target     string `json:"target"`
		TargetPort string `json:"targetPort,omitempty"`
	}

	// PortKey identifies a single (nodeId, portId) pair, used as a map key for
	// port data and port mappings.
	PortKey struct {
		NodeID string
		Port   string
	}

	// TransitionKind is one of the four transition policies a node may declare
	// (§3 Plan.transitions).
	TransitionKind string
)

const (
	TransitionSimple      TransitionKind = "simple"
	TransitionConditional TransitionKind = "conditional"
	TransitionSwitch      TransitionKind = "switch"
	TransitionFunction    TransitionKind = "function"
)

// Transition is the compiled transition policy attached to a node.
type Transition struct {
	Kind TransitionKind

	// Target is used by TransitionSimple: the unconditional next node id, or End.
	Target string

	// Path is the dotted context path evaluated by TransitionConditional and
	// TransitionSwitch.
	Path string

	// Then/Else are used by TransitionConditional.
	Then string
	Else string

	// Cases/Default are used by TransitionSwitch: Cases maps a stringified
	// value to a target node id (or End); Default is used when no case matches.
	Cases   map[string]string
	Default string

	// Source is the sandboxed expression source evaluated by TransitionFunction,
	// receiving {currentNode, status, context}.
	Source string
}

// Plan is the immutable, compiled form of a workflow, ready for the
// Interpreter (§3).
type Plan struct {
	WorkflowID string
	ProjectID  string

	// Executable lists every non-virtual node (trigger and end excluded), in
	// declared order.
	Executable []NodeDescriptor

	// Adjacency maps a node id to its ordered list of outgoing edge targets,
	// preserving declared edge order for deterministic fallback resolution.
	Adjacency map[string][]string

	// PortMappings maps a target (nodeId, inputPort) to the source
	// (nodeId, outputPort) that feeds it, built only from edges where both
	// endpoints declare the named port.
	PortMappings map[PortKey]PortKey

	// Transitions holds the configured transition policy per node id. A node
	// absent from this map has no configured transition; the interpreter falls
	// back to Adjacency[nodeId][0] (§4.2's transition resolution contract).
	Transitions map[string]Transition

	// EndMappings maps an end node id to its optional target status.
	EndMappings map[string]string

	// EndTargets maps a source node id to the end node id reached via
	// adjacency fallback (no configured transition). Populated only for the
	// implicit fallback path; explicit transitions name end node ids directly.
	EndTargets map[string]string

	// InitialPortData seeds the trigger's declared output ports from the
	// workflow's initial context.
	InitialPortData map[string]map[string]any

	TriggerID  string
	EndNodeIDs map[string]bool
}

// NodeDescriptor is a compiled, executable node (trigger/end excluded).
type NodeDescriptor struct {
	ID     string
	Kind   registry.NodeKind
	Config map[string]any
}

// IsEndNode reports whether nodeID names one of the plan's end nodes.
func (p *Plan) IsEndNode(nodeID string) bool {
	return p.EndNodeIDs[nodeID]
}

// Issue describes a single validation failure (§4.2).
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
	EdgeID  string `json:"edgeId,omitempty"`
}

// Issue codes, a closed set used by validate().
const (
	IssueEmptyGraph              = "EMPTY_GRAPH"
	IssueNoExecutableNode        = "NO_EXECUTABLE_NODE"
	IssueMultipleTriggers        = "MULTIPLE_TRIGGERS"
	IssueTriggerHasIncoming      = "TRIGGER_HAS_INCOMING_EDGE"
	IssueEndHasOutgoing          = "END_HAS_OUTGOING_EDGE"
	IssueUnknownNode             = "EDGE_UNKNOWN_NODE"
	IssueIncompatiblePorts       = "EDGE_INCOMPATIBLE_PORTS"
	IssueUnreachableTerminal     = "UNREACHABLE_TERMINAL"
	IssueUnreachableFromTrigger  = "UNREACHABLE_FROM_TRIGGER"
	IssueMissingRequiredConfig   = "MISSING_REQUIRED_CONFIG"
	IssueDuplicateNodeID         = "DUPLICATE_NODE_ID"
	IssueUnknownNodeKind         = "UNKNOWN_NODE_KIND"
)

func (i Issue) Error() string {
	if i.NodeID != "" {
		return i.Code + ": " + i.Message + " (node " + i.NodeID + ")"
	}
	if i.EdgeID != "" {
		return i.Code + ": " + i.Message + " (edge " + i.EdgeID + ")"
	}
	return i.Code + ": " + i.Message
}
