package planner

import (
	"strings"
	"testing"

	"github.com/samber/lo"

	"github.com/daypack/daypack/internal/types"
)

func wt(id string, weight, priority int) types.WeightedTask {
	return types.WeightedTask{
		Task:   types.Task{ID: id, Content: "Task " + id, Priority: priority},
		Weight: weight,
	}
}

func idsOf(batch []types.WeightedTask) string {
	return strings.Join(lo.Map(batch, func(t types.WeightedTask, _ int) string { return t.ID }), ",")
}

func TestFillSack_MaximisesPriorityWithinCapacity(t *testing.T) {
	// The sack holds the combination with the highest total priority that fits
	pool := []types.WeightedTask{
		wt("a", 2, 3),
		wt("b", 3, 4),
		wt("c", 4, 5),
		wt("d", 5, 6),
	}
	got := fillSack(5, pool)
	if idsOf(got) != "a,b" {
		t.Errorf("selected %q, want %q", idsOf(got), "a,b")
	}
}

func TestFillSack_EqualWeightPrefersHigherPriority(t *testing.T) {
	// When only one of two same-weight tasks fits, the higher priority wins
	pool := []types.WeightedTask{
		wt("a", 1, 1),
		wt("b", 1, 4),
	}
	got := fillSack(1, pool)
	if idsOf(got) != "b" {
		t.Errorf("selected %q, want %q", idsOf(got), "b")
	}
}

func TestFillSack_ZeroCapacityAdmitsOnlyWeightless(t *testing.T) {
	// A zero budget still takes zero-weight tasks and nothing else
	pool := []types.WeightedTask{
		wt("a", 0, 1),
		wt("b", 1, 4),
	}
	got := fillSack(0, pool)
	if idsOf(got) != "a" {
		t.Errorf("selected %q, want %q", idsOf(got), "a")
	}
}

func TestFillSack_ZeroWeightRidesAlong(t *testing.T) {
	// Zero-weight tasks never displace weighted ones; they come along for free
	pool := []types.WeightedTask{
		wt("a", 0, 1),
		wt("b", 2, 4),
	}
	got := fillSack(2, pool)
	if idsOf(got) != "a,b" {
		t.Errorf("selected %q, want %q", idsOf(got), "a,b")
	}
}

func TestFillSack_AllTooHeavyReturnsEmpty(t *testing.T) {
	// Nothing fits, nothing is selected
	pool := []types.WeightedTask{
		wt("a", 2, 4),
		wt("b", 3, 4),
	}
	if got := fillSack(1, pool); len(got) != 0 {
		t.Errorf("selected %q, want empty", idsOf(got))
	}
}

func TestFillSack_EmptyPool(t *testing.T) {
	// An empty pool packs to an empty sack
	if got := fillSack(3, nil); len(got) != 0 {
		t.Errorf("selected %q, want empty", idsOf(got))
	}
}

func TestFillSack_TotalPriorityStableAcrossPermutations(t *testing.T) {
	// Pool order never changes the value of the packing, only tie-broken membership
	perms := [][]types.WeightedTask{
		{wt("a", 1, 2), wt("b", 2, 3), wt("c", 3, 4), wt("d", 2, 2)},
		{wt("d", 2, 2), wt("c", 3, 4), wt("b", 2, 3), wt("a", 1, 2)},
		{wt("b", 2, 3), wt("d", 2, 2), wt("a", 1, 2), wt("c", 3, 4)},
	}
	for i, pool := range perms {
		got := fillSack(4, pool)
		value := lo.SumBy(got, func(t types.WeightedTask) int { return t.Priority })
		if value != 6 {
			t.Errorf("perm %d: total priority = %d, want 6 (got %q)", i, value, idsOf(got))
		}
	}
}

func TestFillSack_NeverExceedsCapacity(t *testing.T) {
	// Whatever the budget, the packed weight stays within it
	pool := []types.WeightedTask{
		wt("a", 1, 2), wt("b", 2, 3), wt("c", 3, 4), wt("d", 2, 2),
	}
	for capacity := 0; capacity <= 6; capacity++ {
		got := fillSack(capacity, pool)
		weight := lo.SumBy(got, func(t types.WeightedTask) int { return t.Weight })
		if weight > capacity {
			t.Errorf("capacity %d: packed weight %d (%q)", capacity, weight, idsOf(got))
		}
	}
}
