package planner

import "github.com/daypack/daypack/internal/types"

// fillSack picks the subset of pool that maximises total priority without the
// combined weight exceeding capacity. Classic bounded knapsack over one day's
// budget: values[c] holds the best total priority achievable with weight c,
// selected[c] the tasks that achieve it.
//
// Expectations:
//   - Total weight of the result never exceeds capacity
//   - Zero-weight tasks are always admitted, even at zero capacity
//   - Selected tasks keep their pool order
//   - The total priority of the result is invariant under pool permutation
func fillSack(capacity int, pool []types.WeightedTask) []types.WeightedTask {
	if capacity < 0 {
		capacity = 0
	}
	values := make([]int, capacity+1)
	selected := make([][]types.WeightedTask, capacity+1)

	for _, t := range pool {
		for c := capacity; c >= t.Weight; c-- {
			take := values[c-t.Weight] + t.Priority
			if take <= values[c] {
				continue
			}
			values[c] = take
			packed := make([]types.WeightedTask, len(selected[c-t.Weight]), len(selected[c-t.Weight])+1)
			copy(packed, selected[c-t.Weight])
			selected[c] = append(packed, t)
		}
	}
	return selected[capacity]
}
