package core

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"devpi-cleaner/internal/types"
)

// Comparison is the outcome of comparing two version strings together
// with the rule that decided it.
type Comparison struct {
	Result   int
	Strategy types.ComparisonStrategy
}

// VersionComparator orders version strings in two stages: a structured
// parse under the configured scheme, then plain lexical comparison when
// either side does not parse. Versions such as 0.2.dev2 are not strict
// semver and therefore fall back to lexical order under the default
// scheme.
type VersionComparator struct {
	scheme types.VersionScheme
	cache  *versionCache
}

// versionCache memoizes parsed versions; a nil entry records a parse
// failure so that the fallback decision is also cached.
type versionCache struct {
	semver map[string]*semver.Version
	pep    map[string]*pep440.Version
}

func newVersionCache() *versionCache {
	return &versionCache{
		semver: map[string]*semver.Version{},
		pep:    map[string]*pep440.Version{},
	}
}

func (c *versionCache) semverVersion(value string) (*semver.Version, bool) {
	if parsed, ok := c.semver[value]; ok {
		return parsed, parsed != nil
	}
	parsed, err := semver.StrictNewVersion(value)
	if err != nil {
		c.semver[value] = nil
		return nil, false
	}
	c.semver[value] = parsed
	return parsed, true
}

func (c *versionCache) pepVersion(value string) (*pep440.Version, bool) {
	if parsed, ok := c.pep[value]; ok {
		return parsed, parsed != nil
	}
	parsed, err := pep440.Parse(value)
	if err != nil {
		c.pep[value] = nil
		return nil, false
	}
	c.pep[value] = &parsed
	return &parsed, true
}

// ParseVersionScheme validates a configured scheme name. An empty value
// selects semver.
func ParseVersionScheme(value string) (types.VersionScheme, error) {
	switch types.VersionScheme(strings.ToLower(strings.TrimSpace(value))) {
	case "", types.VersionSchemeSemver:
		return types.VersionSchemeSemver, nil
	case types.VersionSchemePep440:
		return types.VersionSchemePep440, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unsupported version scheme: " + value)
	}
}

func NewVersionComparator(scheme types.VersionScheme) *VersionComparator {
	if scheme == "" {
		scheme = types.VersionSchemeSemver
	}
	return &VersionComparator{scheme: scheme, cache: newVersionCache()}
}

func (c *VersionComparator) Compare(a string, b string) Comparison {
	switch c.scheme {
	case types.VersionSchemePep440:
		v1, ok1 := c.cache.pepVersion(a)
		v2, ok2 := c.cache.pepVersion(b)
		if ok1 && ok2 {
			return Comparison{Result: v1.Compare(*v2), Strategy: types.ComparisonStrategyPep440}
		}
	default:
		v1, ok1 := c.cache.semverVersion(a)
		v2, ok2 := c.cache.semverVersion(b)
		if ok1 && ok2 {
			return Comparison{Result: v1.Compare(v2), Strategy: types.ComparisonStrategySemver}
		}
	}
	return Comparison{Result: strings.Compare(a, b), Strategy: types.ComparisonStrategyLexical}
}

// CompareVersions compares two versions under the default semver scheme.
func CompareVersions(a string, b string) Comparison {
	return NewVersionComparator(types.VersionSchemeSemver).Compare(a, b)
}

// ComparePackages orders identities by index and name for grouping, and
// by version within one package.
func (c *VersionComparator) ComparePackages(a types.PackageIdentity, b types.PackageIdentity) int {
	if a.Index != b.Index {
		return strings.Compare(a.Index, b.Index)
	}
	if a.Name != b.Name {
		return strings.Compare(a.Name, b.Name)
	}
	return c.Compare(a.Version, b.Version).Result
}
