// Package registry implements the Port/Type Registry (component A): the
// closed table of node kinds and their typed ports, plus the type
// compatibility rule used by the Graph Compiler when wiring edges.
package registry

import (
	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

// PortType is one of the closed set of port data types (§4.1).
type PortType string

const (
	TypeString  PortType = "string"
	TypeNumber  PortType = "number"
	TypeBoolean PortType = "boolean"
	TypeObject  PortType = "object"
	TypeArray   PortType = "array"
	TypeAny     PortType = "any"
)

// NodeKind is one of the closed set of node kinds (§3).
type NodeKind string

const (
	KindTrigger        NodeKind = "trigger"
	KindAgent          NodeKind = "agent"
	KindCommand        NodeKind = "command"
	KindSlashCommand   NodeKind = "slash-command"
	KindEval           NodeKind = "eval"
	KindLLM            NodeKind = "llm"
	KindHTTP           NodeKind = "http"
	KindDynamicAgent   NodeKind = "dynamic-agent"
	KindDynamicCommand NodeKind = "dynamic-command"
	KindGitCheckout    NodeKind = "git-checkout"
	KindGitHubProject  NodeKind = "github-project"
	KindEnd            NodeKind = "end"
)

// Port describes a single typed input or output slot on a node kind.
type Port struct {
	Name     string
	Type     PortType
	Required bool
}

// Ports is the input/output port schema for a node kind.
type Ports struct {
	Inputs  []Port
	Outputs []Port
}

// InputByName returns the declared input port with the given name, if any.
func (p Ports) InputByName(name string) (Port, bool) {
	for _, in := range p.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Port{}, false
}

// OutputByName returns the declared output port with the given name, if any.
func (p Ports) OutputByName(name string) (Port, bool) {
	for _, out := range p.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return Port{}, false
}

// table is the static registry of node kinds to port schemas. Trigger and
// End carry no fixed ports here: trigger's outputs are declared per-workflow
// in the node's config and read by the compiler (§4.2); end consumes nothing
// and produces nothing, contributing only its targetStatus to endMappings.
var table = map[NodeKind]Ports{
	KindTrigger: {},
	KindAgent: {
		Inputs:  []Port{{Name: "prompt", Type: TypeString}},
		Outputs: []Port{{Name: "response", Type: TypeObject, Required: true}},
	},
	KindCommand: {
		Inputs: []Port{{Name: "stdin", Type: TypeString}},
		Outputs: []Port{
			{Name: "stdout", Type: TypeString},
			{Name: "stderr", Type: TypeString},
			{Name: "exitCode", Type: TypeNumber},
		},
	},
	KindSlashCommand: {
		Inputs: []Port{{Name: "args", Type: TypeObject}},
		Outputs: []Port{
			{Name: "stdout", Type: TypeString},
			{Name: "stderr", Type: TypeString},
			{Name: "exitCode", Type: TypeNumber},
		},
	},
	KindEval: {},
	KindLLM: {
		Inputs: []Port{{Name: "prompt", Type: TypeString, Required: true}},
		Outputs: []Port{
			{Name: "text", Type: TypeString},
			{Name: "json", Type: TypeObject},
			{Name: "usage", Type: TypeObject},
		},
	},
	KindHTTP: {
		Inputs: []Port{{Name: "body", Type: TypeObject}},
		Outputs: []Port{
			{Name: "status", Type: TypeNumber},
			{Name: "headers", Type: TypeObject},
			{Name: "body", Type: TypeObject},
		},
	},
	KindDynamicAgent: {
		Inputs:  []Port{{Name: "prompt", Type: TypeString}},
		Outputs: []Port{{Name: "response", Type: TypeObject, Required: true}},
	},
	KindDynamicCommand: {
		Inputs: []Port{{Name: "command", Type: TypeString}},
		Outputs: []Port{
			{Name: "stdout", Type: TypeString},
			{Name: "stderr", Type: TypeString},
			{Name: "exitCode", Type: TypeNumber},
		},
	},
	KindGitCheckout: {
		Inputs: []Port{{Name: "ref", Type: TypeString}},
		Outputs: []Port{
			{Name: "path", Type: TypeString},
			{Name: "ref", Type: TypeString},
		},
	},
	KindGitHubProject: {
		Inputs:  []Port{{Name: "updates", Type: TypeArray}},
		Outputs: []Port{{Name: "items", Type: TypeArray}},
	},
	KindEnd: {},
}

// Registry answers "what are the ports of node kind K?" and "is output type
// T_o compatible with input type T_i?" against the closed, static node kind
// table. It performs no dynamic registration at runtime.
type Registry struct{}

// New constructs a Registry backed by the closed node kind table.
func New() *Registry { return &Registry{} }

// PortsOf returns the declared input/output ports for kind. Looking up an
// unknown kind is a programmer error surfaced as a validation failure (§4.1).
func (r *Registry) PortsOf(kind NodeKind) (Ports, error) {
	ports, ok := table[kind]
	if !ok {
		return Ports{}, apperrors.Errorf(apperrors.KindValidation, "registry.PortsOf", "unknown node kind %q", kind)
	}
	return ports, nil
}

// IsKnownKind reports whether kind is a member of the closed node kind set.
func (r *Registry) IsKnownKind(kind NodeKind) bool {
	_, ok := table[kind]
	return ok
}

// Compatible reports whether an output port of type outType can connect to an
// input port of type inType: the types must be equal, or either side must be
// `any` (§4.1). Resolving a port to its type, including trigger/end ports
// whose schemas are per-workflow or empty, is left to the caller (the
// compiler), which treats a side it cannot resolve as compatible.
func (r *Registry) Compatible(outType, inType PortType) bool {
	if outType == TypeAny || inType == TypeAny {
		return true
	}
	return outType == inType
}

// String renders a NodeKind for error messages and logs.
func (k NodeKind) String() string { return string(k) }

// AllKinds returns every member of the closed node-kind set, stable order.
func AllKinds() []NodeKind {
	return []NodeKind{
		KindTrigger, KindAgent, KindCommand, KindSlashCommand, KindEval,
		KindLLM, KindHTTP, KindDynamicAgent, KindDynamicCommand,
		KindGitCheckout, KindGitHubProject, KindEnd,
	}
}

// ValidPortType reports whether t is a member of the closed PortType set.
func ValidPortType(t PortType) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray, TypeAny:
		return true
	}
	return false
}
