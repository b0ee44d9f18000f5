package interpreter

import (
	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/executors"
	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// resolveInputs builds an executor's Inputs by following plan.PortMappings
// back to the producing node's recorded portData. An unresolvable required
// input port is a PortUnresolved failure (§4.3); an unresolvable optional
// port is simply omitted.
func resolveInputs(reg *registry.Registry, plan *graph.Plan, node graph.NodeDescriptor, portData map[string]map[string]any) (executors.Inputs, error) {
	ports, err := reg.PortsOf(node.Kind)
	if err != nil {
		return nil, err
	}

	inputs := make(executors.Inputs, len(ports.Inputs))
	for _, port := range ports.Inputs {
		source, wired := plan.PortMappings[graph.PortKey{NodeID: node.ID, Port: port.Name}]
		if !wired {
			if port.Required {
				return nil, apperrors.Errorf(apperrors.KindPortUnresolved, node.ID, "required input port %q has no wiring", port.Name)
			}
			continue
		}
		value, ok := portData[source.NodeID][source.Port]
		if !ok {
			if port.Required {
				return nil, apperrors.Errorf(apperrors.KindPortUnresolved, node.ID, "required input port %q (from %s.%s) was never produced", port.Name, source.NodeID, source.Port)
			}
			continue
		}
		inputs[port.Name] = value
	}
	return inputs, nil
}
