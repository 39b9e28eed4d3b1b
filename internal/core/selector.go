package core

import (
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devpi-cleaner/internal/types"
)

// Selector decides which parsed identities of a listing are candidates
// for cleaning on one index.
type Selector struct {
	index         string
	onlyDev       bool
	versionFilter *regexp.Regexp
}

func NewSelector(index string, filter types.PackageFilter) (Selector, error) {
	selector := Selector{index: index, onlyDev: filter.OnlyDev}
	if strings.TrimSpace(filter.VersionFilter) != "" {
		re, err := regexp.Compile(filter.VersionFilter)
		if err != nil {
			return Selector{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid version filter").
				WithCause(err)
		}
		selector.versionFilter = re
	}
	return selector, nil
}

func (s Selector) Match(pkg types.PackageIdentity) bool {
	if pkg.Index != s.index {
		return false
	}
	if s.onlyDev && !pkg.IsDev() {
		return false
	}
	if s.versionFilter != nil && !s.versionFilter.MatchString(pkg.Version) {
		return false
	}
	return true
}

// IsArtifactURL reports whether a listing line is a release file URL.
// Client listings also carry informational lines such as
// "*redirected: ..." which must not reach the parser.
func IsArtifactURL(line string) bool {
	return strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://")
}

// SelectPackages parses the artifact URLs of a raw listing and returns
// the identities accepted by the selector. Parse errors abort.
func SelectPackages(lines []string, selector Selector) (types.PackageSet, error) {
	selected := types.PackageSet{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !IsArtifactURL(line) {
			continue
		}
		pkg, err := ParsePackageURL(line)
		if err != nil {
			return nil, err
		}
		if selector.Match(pkg) {
			selected.Add(pkg)
		}
	}
	return selected, nil
}
