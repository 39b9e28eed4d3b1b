package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devpi-cleaner/internal/adapters"
	"devpi-cleaner/internal/ports"
	"devpi-cleaner/internal/shared"
)

// List prints the filtered packages of every selected index. With
// Output set the listing is rendered first and the file is only
// replaced once listing succeeded.
func (s Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	path := strings.TrimSpace(req.Output)
	var rendered bytes.Buffer
	out := s.out()
	if path != "" {
		out = &rendered
	}
	adapter, err := adapters.NewListingWriterAdapter(out, req.Format, req.Server)
	if err != nil {
		return ListResult{}, err
	}
	var writer ports.ListingWriterPort = adapter
	client, cleanup, err := s.connect(ctx, req.Connection)
	if err != nil {
		return ListResult{}, err
	}
	defer cleanup()

	listing, err := ListPackagesByIndex(ctx, client, req.IndexSpec, req.PackageSpec, req.Filter)
	if err != nil {
		return ListResult{}, err
	}
	if err := writer.Write(listing); err != nil {
		return ListResult{}, err
	}
	if path != "" {
		if err := writeOutputFile(path, rendered.Bytes()); err != nil {
			return ListResult{}, err
		}
	}
	log.Ctx(ctx).Info().
		Int("indices", len(listing)).
		Int("packages", listing.Total()).
		Msg("listed packages")
	return ListResult{Listing: listing}, nil
}

func writeOutputFile(path string, data []byte) (err error) {
	file, err := adapters.NewOutputFileAdapter(filepath.Dir(path)).Create(filepath.Base(path))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = outputError(closeErr)
		}
	}()
	if _, err := file.Write(data); err != nil {
		return outputError(err)
	}
	return nil
}

// connect builds the client and logs in when a login is configured.
func (s Service) connect(ctx context.Context, conn Connection) (ports.DevpiClientPort, func(), error) {
	password := shared.ExpandEnv(conn.Password)
	if strings.TrimSpace(conn.Login) != "" && password == "" {
		return nil, nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("password is required when login is set")
	}
	factory := s.NewClient
	if factory == nil {
		factory = buildClient
	}
	client, cleanup, err := factory(conn)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Login(ctx, conn.Login, password); err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Ctx(ctx).Debug().
		Str("server", conn.Server).
		Str("backend", conn.Backend).
		Bool("authenticated", conn.Login != "").
		Msg("connected to devpi")
	return client, cleanup, nil
}

func (s Service) out() io.Writer {
	if s.Out == nil {
		return os.Stdout
	}
	return s.Out
}

func (s Service) in() io.Reader {
	if s.In == nil {
		return os.Stdin
	}
	return s.In
}
