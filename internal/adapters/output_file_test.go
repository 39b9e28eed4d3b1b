package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devpi-cleaner/internal/types"
)

func TestOutputFileAdapterCreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports", "devpi")
	adapter := NewOutputFileAdapter(dir)

	file, err := adapter.Create("listing.txt")
	require.NoError(t, err)
	writer, err := NewListingWriterAdapter(file, "text", "")
	require.NoError(t, err)
	require.NoError(t, writer.Write(types.IndexPackageSet{
		"user/index1": types.NewPackageSet(types.PackageIdentity{Index: "user/index1", Name: "paket", Version: "1.0"}),
	}))
	require.NoError(t, file.Close())

	data, err := os.ReadFile(filepath.Join(dir, "listing.txt"))
	require.NoError(t, err)
	if diff := cmp.Diff("user/index1: 1 package(s)\n  paket 1.0 on user/index1\n", string(data)); diff != "" {
		t.Fatalf("unexpected listing file (-want +got):\n%s", diff)
	}
}

func TestOutputFileAdapterTruncates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "listing.json"), []byte("stale content that is long"), 0644))

	file, err := NewOutputFileAdapter(dir).Create("listing.json")
	require.NoError(t, err)
	_, err = file.WriteString("[]\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	data, err := os.ReadFile(filepath.Join(dir, "listing.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestOutputFileAdapterRejectsEmptyPaths(t *testing.T) {
	_, err := NewOutputFileAdapter("").Create("listing.txt")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))

	_, err = NewOutputFileAdapter(t.TempDir()).Create("")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
