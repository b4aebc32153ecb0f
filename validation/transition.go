package validation

import "fmt"

// TransitionResult is the outcome of checking one status change.
type TransitionResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// transitionGraph maps a current status to the statuses reachable from it.
// A status with an empty target list is terminal.
type transitionGraph map[string][]string

// Transition graphs per entity kind, resolved once at package init.
//
// Orders: Waiting/Pending feed production; any non-terminal state can pause
// or cancel; Completed and Cancelled are terminal.
// Production orders: Pending -> Active -> Completed, with Paused as a
// resumable detour and cancellation from any non-terminal state.
// Rolls: the stage machine is strictly forward, one stage at a time.
var transitionGraphs = map[EntityKind]transitionGraph{
	EntityOrders: {
		"Waiting":       {"Pending", "In Production", "Paused", "Cancelled"},
		"Pending":       {"In Production", "Paused", "Cancelled"},
		"In Production": {"Completed", "Paused", "Cancelled"},
		"Paused":        {"In Production", "Cancelled"},
		"Completed":     {},
		"Cancelled":     {},
	},
	EntityProductionOrders: {
		"Pending":   {"Active", "Cancelled"},
		"Active":    {"Paused", "Completed", "Cancelled"},
		"Paused":    {"Active", "Cancelled"},
		"Completed": {},
		"Cancelled": {},
	},
	EntityRolls: {
		"Film":     {"Printing"},
		"Printing": {"Cutting"},
		"Cutting":  {},
	},
}

// CanTransition decides whether fromStatus -> toStatus is legal for the
// entity kind. Rejections carry a descriptive error naming both states.
func CanTransition(kind EntityKind, fromStatus string, toStatus string) TransitionResult {
	graph, ok := transitionGraphs[kind]
	if !ok {
		return rejected(fmt.Sprintf("no transitions defined for %s", kind))
	}

	targets, known := graph[fromStatus]
	if !known {
		return rejected(fmt.Sprintf("unknown current status %q for %s", fromStatus, kind))
	}
	if _, knownTarget := graph[toStatus]; !knownTarget {
		return rejected(fmt.Sprintf("unknown target status %q for %s (current %q)", toStatus, kind, fromStatus))
	}

	for _, target := range targets {
		if target == toStatus {
			return TransitionResult{IsValid: true, Errors: []string{}}
		}
	}
	if len(targets) == 0 {
		return rejected(fmt.Sprintf("%s status %q is terminal; cannot change to %q", kind, fromStatus, toStatus))
	}
	return rejected(fmt.Sprintf("%s cannot transition from %q to %q", kind, fromStatus, toStatus))
}

func rejected(msg string) TransitionResult {
	return TransitionResult{IsValid: false, Errors: []string{msg}}
}
