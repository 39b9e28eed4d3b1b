package core

import (
	"fmt"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devpi-cleaner/internal/types"
)

// PlanRemoval sorts the packages of one index oldest first and selects,
// per package name, everything but the newest VersionsToKeep versions
// for deletion. A zero policy deletes every package.
func PlanRemoval(index string, packages []types.PackageIdentity, policy types.RemovalPolicy) (types.RemovalPlan, error) {
	for _, pkg := range packages {
		if pkg.Index != index {
			return types.RemovalPlan{}, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("package %s does not belong to index %s", pkg, index))
		}
	}
	keep := policy.VersionsToKeep
	if keep < 0 {
		keep = 0
	}

	comparator := NewVersionComparator(policy.Scheme)
	sorted := append([]types.PackageIdentity(nil), packages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return comparator.ComparePackages(sorted[i], sorted[j]) < 0
	})

	plan := types.RemovalPlan{Index: index}
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Name == sorted[start].Name {
			end++
		}
		group := sorted[start:end]
		deleted := 0
		for _, pkg := range group {
			if len(group)-deleted > keep {
				plan.Delete = append(plan.Delete, pkg)
				deleted++
				continue
			}
			plan.Keep = append(plan.Keep, pkg)
		}
		start = end
	}
	return plan, nil
}
