package ports

import (
	"context"

	"devpi-cleaner/internal/types"
)

// ReleaseFunc ends a scoped index acquisition and restores the index.
type ReleaseFunc func(ctx context.Context) error

type DevpiClientPort interface {
	Login(ctx context.Context, user string, password string) error
	Use(ctx context.Context, index string) error
	ListIndices(ctx context.Context, user string) ([]string, error)
	// ListArtifacts returns raw listing lines: release file URLs plus
	// informational lines. With all set, packages visible through the
	// index bases are included.
	ListArtifacts(ctx context.Context, index string, packageSpec string, all bool) ([]string, error)
	Remove(ctx context.Context, index string, requirement string) error
	// VolatileIndex makes index writable for removals. A non-volatile
	// index is only switched when force is set. The returned release
	// func must run on every exit path.
	VolatileIndex(ctx context.Context, index string, force bool) (ReleaseFunc, error)
}

type ListingWriterPort interface {
	Write(listing types.IndexPackageSet) error
}
