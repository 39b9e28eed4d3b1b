package adapters

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"devpi-cleaner/internal/core"
	"devpi-cleaner/internal/ports"
	"devpi-cleaner/internal/types"
)

type ListingWriterAdapter struct {
	Out    io.Writer
	Format types.ListingFormat
	Server string
}

type listingEntry struct {
	Index   string `json:"index" yaml:"index"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Dev     bool   `json:"dev" yaml:"dev"`
	PURL    string `json:"purl" yaml:"purl"`
}

func NewListingWriterAdapter(out io.Writer, format string, server string) (ListingWriterAdapter, error) {
	normalized := types.ListingFormat(strings.ToLower(strings.TrimSpace(format)))
	switch normalized {
	case "":
		normalized = types.ListingFormatText
	case types.ListingFormatText, types.ListingFormatJSON, types.ListingFormatYAML:
	default:
		return ListingWriterAdapter{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unsupported listing format: " + format)
	}
	return ListingWriterAdapter{Out: out, Format: normalized, Server: server}, nil
}

func (a ListingWriterAdapter) Write(listing types.IndexPackageSet) error {
	switch a.Format {
	case types.ListingFormatJSON:
		encoder := json.NewEncoder(a.Out)
		encoder.SetIndent("", "  ")
		return a.wrap(encoder.Encode(a.entries(listing)))
	case types.ListingFormatYAML:
		encoder := yaml.NewEncoder(a.Out)
		if err := encoder.Encode(a.entries(listing)); err != nil {
			return a.wrap(err)
		}
		return a.wrap(encoder.Close())
	default:
		return a.writeText(listing)
	}
}

func (a ListingWriterAdapter) writeText(listing types.IndexPackageSet) error {
	for _, index := range listing.Indices() {
		packages := listing[index].Slice()
		if _, err := fmt.Fprintf(a.Out, "%s: %d package(s)\n", index, len(packages)); err != nil {
			return a.wrap(err)
		}
		for _, pkg := range packages {
			marker := ""
			if pkg.IsDev() {
				marker = " (dev)"
			}
			if _, err := fmt.Fprintf(a.Out, "  %s%s\n", pkg, marker); err != nil {
				return a.wrap(err)
			}
		}
	}
	return nil
}

func (a ListingWriterAdapter) entries(listing types.IndexPackageSet) []listingEntry {
	entries := []listingEntry{}
	for _, index := range listing.Indices() {
		for _, pkg := range listing[index].Slice() {
			entries = append(entries, listingEntry{
				Index:   pkg.Index,
				Name:    pkg.Name,
				Version: pkg.Version,
				Dev:     pkg.IsDev(),
				PURL:    core.PackageURL(pkg, a.Server),
			})
		}
	}
	return entries
}

func (a ListingWriterAdapter) wrap(err error) error {
	if err == nil {
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("failed to write package listing").
		WithCause(err)
}

var _ ports.ListingWriterPort = ListingWriterAdapter{}
