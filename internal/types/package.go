package types

import (
	"fmt"
	"sort"
	"strings"
)

// DevVersionMarker marks development builds. Matching is a plain
// substring test on the version string.
const DevVersionMarker = ".dev"

// PackageIdentity is one published version of a package on an index.
// It is comparable, so two identities built from different artifact
// URLs of the same release are equal and collapse in a PackageSet.
type PackageIdentity struct {
	Index   string
	Name    string
	Version string
}

func (p PackageIdentity) IsDev() bool {
	return strings.Contains(p.Version, DevVersionMarker)
}

func (p PackageIdentity) String() string {
	return fmt.Sprintf("%s %s on %s", p.Name, p.Version, p.Index)
}

// RemovalSpec is the requirement string handed to the index client.
func (p PackageIdentity) RemovalSpec() string {
	return fmt.Sprintf("%s==%s", p.Name, p.Version)
}

type PackageSet map[PackageIdentity]struct{}

func NewPackageSet(packages ...PackageIdentity) PackageSet {
	set := PackageSet{}
	for _, pkg := range packages {
		set.Add(pkg)
	}
	return set
}

func (s PackageSet) Add(pkg PackageIdentity) {
	s[pkg] = struct{}{}
}

func (s PackageSet) Contains(pkg PackageIdentity) bool {
	_, ok := s[pkg]
	return ok
}

func (s PackageSet) Len() int {
	return len(s)
}

// Slice returns the members ordered by index, name and version string.
// It is meant for stable output, not for version ordering.
func (s PackageSet) Slice() []PackageIdentity {
	out := make([]PackageIdentity, 0, len(s))
	for pkg := range s {
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

type IndexPackageSet map[string]PackageSet

// Indices returns the index identifiers in sorted order.
func (s IndexPackageSet) Indices() []string {
	out := make([]string, 0, len(s))
	for index := range s {
		out = append(out, index)
	}
	sort.Strings(out)
	return out
}

func (s IndexPackageSet) Total() int {
	total := 0
	for _, set := range s {
		total += set.Len()
	}
	return total
}
