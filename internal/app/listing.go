package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devpi-cleaner/internal/core"
	"devpi-cleaner/internal/ports"
	"devpi-cleaner/internal/types"
)

// ResolveIndices expands an index spec. "user/index" names one index,
// a bare "user" means every index that user owns.
func ResolveIndices(ctx context.Context, client ports.DevpiClientPort, indexSpec string) ([]string, error) {
	spec := strings.TrimSpace(indexSpec)
	if spec == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("index spec is required")
	}
	if strings.Contains(spec, "/") {
		return []string{spec}, nil
	}
	return client.ListIndices(ctx, spec)
}

// ListPackages lists the packages matching packageSpec that live on
// index itself, filtered by the dev and version filters. Artifacts
// inherited from base indices are listed by the client but dropped here.
func ListPackages(ctx context.Context, client ports.DevpiClientPort, index string, packageSpec string, filter types.PackageFilter) (types.PackageSet, error) {
	selector, err := core.NewSelector(index, filter)
	if err != nil {
		return nil, err
	}
	if err := client.Use(ctx, index); err != nil {
		return nil, err
	}
	lines, err := client.ListArtifacts(ctx, index, packageSpec, true)
	if err != nil {
		return nil, err
	}
	packages, err := core.SelectPackages(lines, selector)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().
		Str("index", index).
		Str("spec", packageSpec).
		Int("artifacts", len(lines)).
		Int("packages", packages.Len()).
		Msg("listed packages")
	return packages, nil
}

func ListPackagesByIndex(ctx context.Context, client ports.DevpiClientPort, indexSpec string, packageSpec string, filter types.PackageFilter) (types.IndexPackageSet, error) {
	indices, err := ResolveIndices(ctx, client, indexSpec)
	if err != nil {
		return nil, err
	}
	listing := types.IndexPackageSet{}
	for _, index := range indices {
		packages, err := ListPackages(ctx, client, index, packageSpec, filter)
		if err != nil {
			return nil, err
		}
		listing[index] = packages
	}
	return listing, nil
}
