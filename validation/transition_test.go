package validation_test

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/validation"
)

func TestRollStagesAreStrictlySequential(t *testing.T) {
	if res := validation.CanTransition(validation.EntityRolls, "Film", "Printing"); !res.IsValid {
		t.Fatalf("Film -> Printing should be legal: %v", res.Errors)
	}
	if res := validation.CanTransition(validation.EntityRolls, "Printing", "Cutting"); !res.IsValid {
		t.Fatalf("Printing -> Cutting should be legal: %v", res.Errors)
	}

	if res := validation.CanTransition(validation.EntityRolls, "Film", "Cutting"); res.IsValid {
		t.Fatal("Film -> Cutting skips a stage and must be rejected")
	}
	if res := validation.CanTransition(validation.EntityRolls, "Printing", "Film"); res.IsValid {
		t.Fatal("stages must not move backwards")
	}
	if res := validation.CanTransition(validation.EntityRolls, "Cutting", "Film"); res.IsValid {
		t.Fatal("Cutting is terminal")
	}
}

func TestNoRollPathSkipsAStage(t *testing.T) {
	stages := []string{"Film", "Printing", "Cutting"}
	for i, from := range stages {
		for j, to := range stages {
			res := validation.CanTransition(validation.EntityRolls, from, to)
			if j == i+1 && !res.IsValid {
				t.Fatalf("%s -> %s should be legal", from, to)
			}
			if j != i+1 && res.IsValid {
				t.Fatalf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestOrderTerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []string{"Completed", "Cancelled"} {
		for _, target := range []string{"Waiting", "Pending", "In Production", "Paused", "Completed", "Cancelled"} {
			res := validation.CanTransition(validation.EntityOrders, terminal, target)
			if res.IsValid {
				t.Fatalf("orders must not leave %s (tried %s)", terminal, target)
			}
		}
	}

	res := validation.CanTransition(validation.EntityOrders, "Completed", "Waiting")
	if len(res.Errors) != 1 {
		t.Fatalf("expected one error, got %v", res.Errors)
	}
	if !strings.Contains(res.Errors[0], "Completed") || !strings.Contains(res.Errors[0], "Waiting") {
		t.Fatalf("rejection must name both states: %q", res.Errors[0])
	}
}

func TestOrderHappyPath(t *testing.T) {
	path := [][2]string{
		{"Waiting", "In Production"},
		{"In Production", "Paused"},
		{"Paused", "In Production"},
		{"In Production", "Completed"},
	}
	for _, step := range path {
		if res := validation.CanTransition(validation.EntityOrders, step[0], step[1]); !res.IsValid {
			t.Fatalf("%s -> %s should be legal: %v", step[0], step[1], res.Errors)
		}
	}
}

func TestProductionOrderPauseAndResume(t *testing.T) {
	if res := validation.CanTransition(validation.EntityProductionOrders, "Active", "Paused"); !res.IsValid {
		t.Fatalf("Active -> Paused should be legal: %v", res.Errors)
	}
	if res := validation.CanTransition(validation.EntityProductionOrders, "Paused", "Active"); !res.IsValid {
		t.Fatalf("Paused -> Active should be legal: %v", res.Errors)
	}
	if res := validation.CanTransition(validation.EntityProductionOrders, "Pending", "Completed"); res.IsValid {
		t.Fatal("Pending -> Completed skips Active and must be rejected")
	}
	if res := validation.CanTransition(validation.EntityProductionOrders, "Paused", "Cancelled"); !res.IsValid {
		t.Fatalf("cancellation from a non-terminal state should be legal: %v", res.Errors)
	}
}

func TestUnknownStatusesAreRejected(t *testing.T) {
	res := validation.CanTransition(validation.EntityOrders, "Waiting", "Shipped")
	if res.IsValid {
		t.Fatal("unknown target status must be rejected")
	}
	if !strings.Contains(res.Errors[0], "Shipped") || !strings.Contains(res.Errors[0], "Waiting") {
		t.Fatalf("rejection must name both states: %q", res.Errors[0])
	}
	if res := validation.CanTransition(validation.EntityOrders, "Limbo", "Completed"); res.IsValid {
		t.Fatal("unknown current status must be rejected")
	}
	if res := validation.CanTransition(validation.EntityKind("widgets"), "A", "B"); res.IsValid {
		t.Fatal("unknown entity kind must be rejected")
	}
}
