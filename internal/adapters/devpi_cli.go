package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devpi-cleaner/internal/ports"
	"devpi-cleaner/internal/shared"
)

const defaultDevpiBinary = "devpi"

// DevpiCLIAdapter drives the devpi command line client. ClientDir keeps
// the client's login and "use" state apart from the operator's own.
type DevpiCLIAdapter struct {
	Endpoint  string
	Binary    string
	ClientDir string
}

func NewDevpiCLIAdapter(endpoint string, binary string, clientDir string) DevpiCLIAdapter {
	if strings.TrimSpace(binary) == "" {
		binary = defaultDevpiBinary
	}
	return DevpiCLIAdapter{
		Endpoint:  strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		Binary:    binary,
		ClientDir: clientDir,
	}
}

func (a DevpiCLIAdapter) Login(ctx context.Context, user string, password string) error {
	if _, err := a.runDevpiOutput(ctx, "use", a.Endpoint); err != nil {
		return err
	}
	if strings.TrimSpace(user) == "" {
		return nil
	}
	if _, err := a.runDevpiOutput(ctx, "login", user, "--password", password); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("devpi login failed for user %s", user)).
			WithCause(err)
	}
	return nil
}

func (a DevpiCLIAdapter) Use(ctx context.Context, index string) error {
	_, err := a.runDevpiOutput(ctx, "use", a.Endpoint+"/"+index)
	return err
}

func (a DevpiCLIAdapter) ListIndices(ctx context.Context, user string) ([]string, error) {
	var decoded struct {
		Result struct {
			Indexes map[string]json.RawMessage `json:"indexes"`
		} `json:"result"`
	}
	if err := a.getJSON(ctx, "/"+strings.Trim(user, "/"), &decoded); err != nil {
		return nil, err
	}
	indices := make([]string, 0, len(decoded.Result.Indexes))
	for name := range decoded.Result.Indexes {
		indices = append(indices, user+"/"+name)
	}
	sort.Strings(indices)
	return indices, nil
}

func (a DevpiCLIAdapter) ListArtifacts(ctx context.Context, index string, packageSpec string, all bool) ([]string, error) {
	args := []string{"list"}
	if strings.TrimSpace(index) != "" {
		args = append(args, "--index", index)
	}
	if all {
		args = append(args, "--all")
	}
	args = append(args, packageSpec)
	output, err := a.runDevpiOutput(ctx, args...)
	if err != nil {
		return nil, err
	}
	return splitLines(output), nil
}

func (a DevpiCLIAdapter) Remove(ctx context.Context, index string, requirement string) error {
	_, err := a.runDevpiOutput(ctx, "remove", "-y", "--index", index, requirement)
	return err
}

func (a DevpiCLIAdapter) VolatileIndex(ctx context.Context, index string, force bool) (ports.ReleaseFunc, error) {
	var decoded struct {
		Result indexConfig `json:"result"`
	}
	if err := a.getJSON(ctx, "/"+index, &decoded); err != nil {
		return nil, err
	}
	if decoded.Result.Volatile {
		return func(context.Context) error { return nil }, nil
	}
	if !force {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("index %s is not volatile, use force to clean it", index))
	}
	if _, err := a.runDevpiOutput(ctx, "index", index, "volatile=True"); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("index", index).Msg("index made volatile")
	return func(ctx context.Context) error {
		_, err := a.runDevpiOutput(ctx, "index", index, "volatile=False")
		return err
	}, nil
}

func (a DevpiCLIAdapter) getJSON(ctx context.Context, path string, out interface{}) error {
	output, err := a.runDevpiOutput(ctx, "getjson", path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(output), out); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to parse devpi getjson output").
			WithCause(err)
	}
	return nil
}

func (a DevpiCLIAdapter) runDevpiOutput(ctx context.Context, args ...string) (string, error) {
	subcommand := args[0]
	if strings.TrimSpace(a.ClientDir) != "" {
		args = append([]string{"--clientdir", a.ClientDir}, args...)
	}
	cmd := exec.CommandContext(ctx, a.Binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("devpi %s failed", subcommand)).
			WithCause(shared.CommandError(output, err))
	}
	return string(output), nil
}

func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

var _ ports.DevpiClientPort = DevpiCLIAdapter{}
