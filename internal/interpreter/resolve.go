package interpreter

import (
	"context"

	"github.com/iota-uz/foundry-sub005/internal/graph"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
)

// resolveNext implements the transition resolution contract (§4.2): it
// decides the next node id (or the End sentinel) for nodeID, and, when the
// sentinel is reached, which end node was the terminus and its configured
// completion status.
func resolveNext(ctx context.Context, plan *graph.Plan, nodeID string, execCtx map[string]any, sb *sandbox.Sandbox, logger telemetry.Logger) (target string, ended bool, endNodeID string, completionStatus string) {
	target = resolveTarget(ctx, plan, nodeID, execCtx, sb, logger)

	if target == graph.End {
		if endID, ok := plan.EndTargets[nodeID]; ok {
			return target, true, endID, plan.EndMappings[endID]
		}
		return target, true, "", ""
	}
	if plan.IsEndNode(target) {
		return target, true, target, plan.EndMappings[target]
	}
	return target, false, "", ""
}

func resolveTarget(ctx context.Context, plan *graph.Plan, nodeID string, execCtx map[string]any, sb *sandbox.Sandbox, logger telemetry.Logger) string {
	t, hasTransition := plan.Transitions[nodeID]
	if !hasTransition {
		targets := plan.Adjacency[nodeID]
		if len(targets) == 0 {
			return graph.End
		}
		return targets[0]
	}

	switch t.Kind {
	case graph.TransitionSimple:
		if t.Target == "" {
			return graph.End
		}
		return t.Target

	case graph.TransitionConditional:
		val, _, _ := sb.ResolvePath(t.Path, execCtx)
		if sandbox.Truthy(val) {
			return orEnd(t.Then)
		}
		return orEnd(t.Else)

	case graph.TransitionSwitch:
		val, _, _ := sb.ResolvePath(t.Path, execCtx)
		key := sandbox.Stringify(val)
		if target, ok := t.Cases[key]; ok {
			return orEnd(target)
		}
		return orEnd(t.Default)

	case graph.TransitionFunction:
		result, err := sb.RunScript(ctx, nodeID, "return ("+t.Source+")", map[string]any{
			"currentNode": nodeID,
			"status":      "completed",
			"context":     execCtx,
		})
		if err != nil {
			if logger != nil {
				logger.Warn(ctx, "function transition failed, downgrading to END", "nodeId", nodeID, "error", err.Error())
			}
			return graph.End
		}
		if target, ok := result.(string); ok && target != "" {
			return target
		}
		return graph.End
	}
	return graph.End
}

func orEnd(target string) string {
	if target == "" {
		return graph.End
	}
	return target
}
