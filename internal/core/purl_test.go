package core

import (
	"testing"

	packageurl "github.com/package-url/packageurl-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devpi-cleaner/internal/types"
)

func TestPackageURL(t *testing.T) {
	pkg := types.PackageIdentity{Index: "user/index1", Name: "paket", Version: "0.2.dev2"}

	assert.Equal(t, "pkg:pypi/paket@0.2.dev2", PackageURL(pkg, ""))

	parsed, err := packageurl.FromString(PackageURL(pkg, testServer+"/"))
	require.NoError(t, err)
	assert.Equal(t, "pypi", parsed.Type)
	assert.Equal(t, "paket", parsed.Name)
	assert.Equal(t, "0.2.dev2", parsed.Version)
	assert.Equal(t, testServer+"/user/index1/+simple", parsed.Qualifiers.Map()["repository_url"])
}
