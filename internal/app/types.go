package app

import "devpi-cleaner/internal/types"

// Connection selects and configures the devpi client backend.
type Connection struct {
	Server           string
	Login            string
	Password         string
	Backend          string
	DevpiBinary      string
	ClientDir        string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
}

type ListRequest struct {
	Connection
	IndexSpec   string
	PackageSpec string
	Filter      types.PackageFilter
	Format      string
	Output      string
}

type ListResult struct {
	Listing types.IndexPackageSet
}

type CleanRequest struct {
	Connection
	IndexSpec      string
	PackageSpec    string
	Filter         types.PackageFilter
	VersionsToKeep int
	VersionScheme  string
	Force          bool
	Batch          bool
	DryRun         bool
}

type CleanResult struct {
	Plans        []types.RemovalPlan
	DeleteCount  int
	KeepCount    int
	DryRun       bool
	Declined     bool
	DurationSecs float64
}
