package app

import (
	"context"
	"errors"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog/log"

	"devpi-cleaner/internal/core"
	"devpi-cleaner/internal/ports"
	"devpi-cleaner/internal/types"
)

// releaseTimeout bounds restoring the index once the caller's context
// is done.
const releaseTimeout = 30 * time.Second

// RemovePackages deletes packages from index, oldest first, leaving the
// newest keep versions of every package name. Removal happens while
// the index is volatile; the scope is released on every return path.
func RemovePackages(ctx context.Context, client ports.DevpiClientPort, index string, packages []types.PackageIdentity, force bool, keep int) error {
	_, err := RemovePackagesWithPolicy(ctx, client, index, packages, force, types.RemovalPolicy{
		VersionsToKeep: keep,
		Scheme:         types.VersionSchemeSemver,
	})
	return err
}

func RemovePackagesWithPolicy(ctx context.Context, client ports.DevpiClientPort, index string, packages []types.PackageIdentity, force bool, policy types.RemovalPolicy) (_ types.RemovalPlan, err error) {
	assert.NotEmpty(ctx, index, "index must not be empty")
	plan, err := core.PlanRemoval(index, packages, policy)
	if err != nil {
		return types.RemovalPlan{}, err
	}
	logger := log.Ctx(ctx)
	logger.Info().Str("index", index).Int("packages", len(packages)).Msg("removing packages")

	release, err := client.VolatileIndex(ctx, index, force)
	if err != nil {
		return plan, err
	}
	defer func() {
		// The index must be restored even when ctx was cancelled mid-loop.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if releaseErr := release(releaseCtx); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
	}()

	for _, pkg := range plan.Delete {
		logger.Info().Str("index", index).Str("package", pkg.RemovalSpec()).Msg("deleting")
		if err := client.Remove(ctx, index, pkg.RemovalSpec()); err != nil {
			return plan, err
		}
		logger.Info().Str("index", index).Str("package", pkg.RemovalSpec()).Msg("deleted")
	}
	if len(plan.Keep) > 0 {
		logger.Info().
			Str("index", index).
			Msgf("deleted %d, leaving %d versions", len(plan.Delete), len(plan.Keep))
	}
	return plan, nil
}
