package core

import (
	"strings"

	packageurl "github.com/package-url/packageurl-go"

	"devpi-cleaner/internal/types"
)

// PackageURL renders the identity as a pypi package URL. When server is
// set, the index's simple page becomes the repository_url qualifier.
func PackageURL(pkg types.PackageIdentity, server string) string {
	var qualifiers packageurl.Qualifiers
	base := strings.TrimRight(strings.TrimSpace(server), "/")
	if base != "" {
		qualifiers = packageurl.QualifiersFromMap(map[string]string{
			"repository_url": base + "/" + pkg.Index + "/+simple",
		})
	}
	purl := packageurl.NewPackageURL(packageurl.TypePyPi, "", pkg.Name, pkg.Version, qualifiers, "")
	return purl.ToString()
}
