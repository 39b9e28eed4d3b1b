package types

type PackageFilter struct {
	OnlyDev       bool
	VersionFilter string
}

type RemovalPolicy struct {
	VersionsToKeep int
	Scheme         VersionScheme
}

// RemovalPlan lists, oldest first, what a removal pass deletes and what
// it leaves on the index.
type RemovalPlan struct {
	Index  string
	Delete []PackageIdentity
	Keep   []PackageIdentity
}
