package core

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devpi-cleaner/internal/types"
)

var devListing = []string{
	testServer + "/user/index1/+f/70e/3bc67b3194143/delete_me-0.2-py2.py3-none-any.whl",
	testServer + "/user/index1/+f/313/8642d2b43a764/delete_me-0.2.tar.gz",
	testServer + "/user/index1/+f/bab/f9b37c9d0d192/delete_me-0.2a1.tar.gz",
	testServer + "/user/index1/+f/e8e/d9cfe14d2ef65/delete_me-0.2a1-py2.py3-none-any.whl",
	testServer + "/user/index1/+f/842/84d1283874110/delete_me-0.2.dev2.tar.gz",
	testServer + "/user/index1/+f/636/95eef6ac86c76/delete_me-0.2.dev2-py2.py3-none-any.whl",
	testServer + "/user/index1/+f/c22/cdec16d5ddc3a/delete_me-0.1-py2.py3-none-any.whl",
	testServer + "/user/index1/+f/45b/301745c6d8bbf/delete_me-0.1.tar.gz",
}

func identities(index string, name string, versions ...string) []types.PackageIdentity {
	out := make([]types.PackageIdentity, 0, len(versions))
	for _, version := range versions {
		out = append(out, types.PackageIdentity{Index: index, Name: name, Version: version})
	}
	return out
}

func TestSelectPackagesCases(t *testing.T) {
	tests := []struct {
		name     string
		filter   types.PackageFilter
		expected []types.PackageIdentity
	}{
		{
			name:     "all versions",
			expected: identities("user/index1", "delete_me", "0.1", "0.2", "0.2.dev2", "0.2a1"),
		},
		{
			name:     "only dev",
			filter:   types.PackageFilter{OnlyDev: true},
			expected: identities("user/index1", "delete_me", "0.2.dev2"),
		},
		{
			name:     "version filter searches",
			filter:   types.PackageFilter{VersionFilter: `a\d`},
			expected: identities("user/index1", "delete_me", "0.2a1"),
		},
		{
			name:     "anchored version filter",
			filter:   types.PackageFilter{VersionFilter: `^0\.2`},
			expected: identities("user/index1", "delete_me", "0.2", "0.2.dev2", "0.2a1"),
		},
		{
			name:     "dev and filter combined",
			filter:   types.PackageFilter{OnlyDev: true, VersionFilter: `^0\.1`},
			expected: []types.PackageIdentity{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selector, err := NewSelector("user/index1", tt.filter)
			require.NoError(t, err)
			set, err := SelectPackages(devListing, selector)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, set.Slice())
		})
	}
}

func TestSelectPackagesDropsInformationalLines(t *testing.T) {
	listing := []string{
		"*redirected: http://localhost:2414/user/index2/delete_me",
		testServer + "/user/index2/+f/70e/3bc67b3194143/delete_me-0.2-py2.py3-none-any.whl",
		testServer + "/user/index2/+f/313/8642d2b43a764/delete_me-0.2.tar.gz",
		testServer + "/other_user/index1/+f/70e/3bc67b3194143/delete_me-0.2-py2.py3-none-any.whl",
		testServer + "/other_user/index1/+f/313/8642d2b43a764/delete_me-0.2.tar.gz",
		"",
	}
	selector, err := NewSelector("user/index2", types.PackageFilter{})
	require.NoError(t, err)

	set, err := SelectPackages(listing, selector)
	require.NoError(t, err)
	assert.Equal(t, identities("user/index2", "delete_me", "0.2"), set.Slice())
}

func TestSelectPackagesStopsOnUnsupportedFormat(t *testing.T) {
	listing := []string{
		testServer + "/user/index1/+f/45b/301745c6d8bbf/delete_me-0.1.tar.gz",
		testServer + "/user/index1/+f/45b/301745c6d8bbf/delete_me-0.1.msi",
	}
	selector, err := NewSelector("user/index1", types.PackageFilter{})
	require.NoError(t, err)

	_, err = SelectPackages(listing, selector)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestNewSelectorRejectsInvalidRegex(t *testing.T) {
	_, err := NewSelector("user/index1", types.PackageFilter{VersionFilter: "("})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestIsArtifactURL(t *testing.T) {
	assert.True(t, IsArtifactURL("http://x/a"))
	assert.True(t, IsArtifactURL("https://x/a"))
	assert.False(t, IsArtifactURL("*redirected: http://x/a"))
	assert.False(t, IsArtifactURL("ftp://x/a"))
}
