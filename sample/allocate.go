package sample

import (
	"math"
	"sort"
)

// Allocate distributes target samples across categories in proportion to
// each category's population. The output always sums to exactly target
// (unless the rounding surplus cannot be shed because no category holds more
// than one allocation, in which case the orchestrator's final truncation
// compensates). When target is at least the number of categories, every
// nonempty category is guaranteed at least one allocation. Residual
// adjustment visits categories in descending population order so that the
// largest categories absorb the distortion. Deterministic for a fixed input
// table.
func Allocate(pops []CategoryPopulation, target int) map[string]int {
	out := make(map[string]int)

	// Zero-population categories cannot contribute samples.
	eligible := make([]CategoryPopulation, 0, len(pops))
	var total int64
	for _, p := range pops {
		if p.Population <= 0 {
			continue
		}
		eligible = append(eligible, p)
		total += p.Population
	}

	if total == 0 || target <= 0 {
		return out
	}

	// Largest populations first; category name breaks ties so the
	// adjustment order is stable.
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Population != eligible[j].Population {
			return eligible[i].Population > eligible[j].Population
		}
		return eligible[i].Category < eligible[j].Category
	})

	allocated := 0
	for _, p := range eligible {
		n := int(math.Round(float64(p.Population) / float64(total) * float64(target)))

		// Guarantee representation when the budget allows it.
		if target >= len(eligible) && n < 1 {
			n = 1
		}

		out[p.Category] = n
		allocated += n
	}

	// Reconcile the rounding residual, biased toward the largest
	// categories. A pass that makes no progress terminates the loop.
	residual := target - allocated
	for residual != 0 {
		progress := false

		for _, p := range eligible {
			if residual == 0 {
				break
			}

			if residual > 0 {
				out[p.Category]++
				residual--
				progress = true
			} else if out[p.Category] > 1 {
				out[p.Category]--
				residual++
				progress = true
			}
		}

		if !progress {
			break
		}
	}

	return out
}
