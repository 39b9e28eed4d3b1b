package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devpi-cleaner/internal/types"
)

const (
	tarGzExt  = ".tar.gz"
	tarBz2Ext = ".tar.bz2"
	zipExt    = ".zip"
	wheelExt  = ".whl"
	eggExt    = ".egg"
)

var sdistExtensions = []string{tarGzExt, tarBz2Ext, zipExt}

// releaseFileMarker is the path segment devpi places between the index
// and the hash directories of a release file.
const releaseFileMarker = "+f"

// ParsePackageURL builds a package identity from a devpi release file
// URL such as
// http://localhost:2414/user/index1/+f/45b/301745c6d8bbf/delete_me-0.1.tar.gz.
// The index is the two segments before the last "+f" segment, which
// may be followed by one or more hash directories.
func ParsePackageURL(rawURL string) (types.PackageIdentity, error) {
	parts := strings.Split(rawURL, "/")
	marker := -1
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == releaseFileMarker {
			marker = i
			break
		}
	}
	// user, index and at least one hash directory before the filename
	if marker < 2 || marker > len(parts)-3 || parts[marker-2] == "" || parts[marker-1] == "" {
		return types.PackageIdentity{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("malformed package url: %s", rawURL))
	}
	name, version, err := ExtractNameAndVersion(parts[len(parts)-1])
	if err != nil {
		return types.PackageIdentity{}, err
	}
	return types.PackageIdentity{
		Index:   parts[marker-2] + "/" + parts[marker-1],
		Name:    name,
		Version: version,
	}, nil
}

// ExtractNameAndVersion splits a distribution filename into package name
// and version. Wheels and eggs carry the version as the second dash
// separated token; source distributions carry it after the last dash.
func ExtractNameAndVersion(filename string) (string, string, error) {
	if strings.HasSuffix(filename, wheelExt) || strings.HasSuffix(filename, eggExt) {
		tokens := strings.Split(filename, "-")
		if len(tokens) < 2 {
			return "", "", unsupportedFormat(filename)
		}
		return tokens[0], tokens[1], nil
	}

	cut := strings.LastIndex(filename, "-")
	if cut < 0 {
		return "", "", unsupportedFormat(filename)
	}
	name, versionAndExt := filename[:cut], filename[cut+1:]
	if !startsWithDigit(versionAndExt) {
		// setuptools-scm on old setuptools separates the local version part with a dash.
		tokens := strings.Split(filename, "-")
		if len(tokens) >= 3 {
			name = strings.Join(tokens[:len(tokens)-2], "-")
			versionAndExt = strings.Join(tokens[len(tokens)-2:], "-")
		}
	}
	for _, ext := range sdistExtensions {
		if strings.HasSuffix(versionAndExt, ext) {
			return name, strings.TrimSuffix(versionAndExt, ext), nil
		}
	}
	return "", "", unsupportedFormat(filename)
}

func unsupportedFormat(filename string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("unsupported package format: %s", filename))
}

func startsWithDigit(value string) bool {
	for _, r := range value {
		return unicode.IsDigit(r)
	}
	return false
}
