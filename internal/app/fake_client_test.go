package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devpi-cleaner/internal/ports"
)

const testServer = "http://localhost:2414"

// fakeClient records every port call in order as a short string.
type fakeClient struct {
	indices    map[string][]string
	listings   map[string][]string
	loginErr   error
	volatile   error
	releaseErr error
	failRemove string
	// cancelOnRemove is called from the first Remove, simulating an
	// interrupt in the middle of a removal run.
	cancelOnRemove context.CancelFunc
	calls          []string
	password       string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		indices:  map[string][]string{},
		listings: map[string][]string{},
	}
}

func (f *fakeClient) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) Login(_ context.Context, user string, password string) error {
	f.record("login %s", user)
	f.password = password
	return f.loginErr
}

func (f *fakeClient) Use(_ context.Context, index string) error {
	f.record("use %s", index)
	return nil
}

func (f *fakeClient) ListIndices(_ context.Context, user string) ([]string, error) {
	f.record("indices %s", user)
	indices, ok := f.indices[user]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no such user " + user)
	}
	return indices, nil
}

func (f *fakeClient) ListArtifacts(_ context.Context, index string, packageSpec string, all bool) ([]string, error) {
	f.record("list %s %s all=%t", index, packageSpec, all)
	return f.listings[index], nil
}

func (f *fakeClient) Remove(ctx context.Context, index string, requirement string) error {
	f.record("remove %s %s", index, requirement)
	if f.cancelOnRemove != nil {
		f.cancelOnRemove()
		f.cancelOnRemove = nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failRemove != "" && f.failRemove == requirement {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("devpi remove failed")
	}
	return nil
}

func (f *fakeClient) VolatileIndex(_ context.Context, index string, force bool) (ports.ReleaseFunc, error) {
	f.record("volatile %s force=%t", index, force)
	if f.volatile != nil {
		return nil, f.volatile
	}
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			f.record("release %s failed", index)
			return err
		}
		f.record("release %s", index)
		return f.releaseErr
	}, nil
}

func (f *fakeClient) callsWithPrefix(prefix string) []string {
	var out []string
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			out = append(out, call)
		}
	}
	return out
}

func (f *fakeClient) factory() ClientFactory {
	return func(Connection) (ports.DevpiClientPort, func(), error) {
		return f, func() {}, nil
	}
}

func artifactURL(index string, filename string) string {
	return fmt.Sprintf("%s/%s/+f/70e/3bc67b3194143/%s", testServer, index, filename)
}

var _ ports.DevpiClientPort = (*fakeClient)(nil)
