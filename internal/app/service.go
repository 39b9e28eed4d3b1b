package app

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devpi-cleaner/internal/adapters"
	"devpi-cleaner/internal/ports"
	"devpi-cleaner/internal/types"
)

// ClientFactory builds the devpi client for one run. The returned
// cleanup func is always non-nil when err is nil.
type ClientFactory func(conn Connection) (ports.DevpiClientPort, func(), error)

type Service struct {
	NewClient ClientFactory
	Out       io.Writer
	In        io.Reader
	Clock     func() time.Time
}

func NewService() Service {
	return Service{
		NewClient: buildClient,
		Out:       os.Stdout,
		In:        os.Stdin,
		Clock:     time.Now,
	}
}

func timeNow(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}

func buildClient(conn Connection) (ports.DevpiClientPort, func(), error) {
	server := strings.TrimSpace(conn.Server)
	if server == "" {
		return nil, nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("devpi server url is required")
	}
	backend := types.ClientBackend(strings.ToLower(strings.TrimSpace(conn.Backend)))
	if backend == "" {
		backend = types.ClientBackendHTTP
	}
	switch backend {
	case types.ClientBackendHTTP:
		adapter := adapters.NewDevpiHTTPAdapter(
			server,
			conn.HTTPTimeoutSec,
			conn.HTTPRetries,
			conn.HTTPRetryDelayMs,
		)
		return adapter, func() {}, nil
	case types.ClientBackendCLI:
		clientDir := strings.TrimSpace(conn.ClientDir)
		cleanup := func() {}
		if clientDir == "" {
			dir, err := os.MkdirTemp("", "devpi-cleaner-client-")
			if err != nil {
				return nil, nil, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("failed to create devpi client dir").
					WithCause(err)
			}
			clientDir = dir
			cleanup = func() { _ = os.RemoveAll(dir) }
		}
		return adapters.NewDevpiCLIAdapter(server, conn.DevpiBinary, clientDir), cleanup, nil
	default:
		return nil, nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unsupported devpi client backend: " + conn.Backend)
	}
}
