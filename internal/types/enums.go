package types

type VersionScheme string

const (
	VersionSchemeSemver VersionScheme = "semver"
	VersionSchemePep440 VersionScheme = "pep440"
)

type ComparisonStrategy string

const (
	ComparisonStrategySemver  ComparisonStrategy = "semver"
	ComparisonStrategyPep440  ComparisonStrategy = "pep440"
	ComparisonStrategyLexical ComparisonStrategy = "lexical"
)

type ClientBackend string

const (
	ClientBackendHTTP ClientBackend = "http"
	ClientBackendCLI  ClientBackend = "cli"
)

type ListingFormat string

const (
	ListingFormatText ListingFormat = "text"
	ListingFormatJSON ListingFormat = "json"
	ListingFormatYAML ListingFormat = "yaml"
)
