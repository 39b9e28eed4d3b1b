package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devpi-cleaner/internal/app"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"list", "clean"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestListCommandFlags(t *testing.T) {
	cmd := newListCommand()
	flags := []string{
		"server", "login", "password", "backend", "devpi-bin", "client-dir",
		"http-timeout", "http-retries", "http-retry-delay-ms",
		"dev-only", "version-filter", "format", "output",
	}
	for _, name := range flags {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
}

func TestCleanCommandFlags(t *testing.T) {
	cmd := newCleanCommand()
	flags := []string{
		"server", "login", "password", "backend",
		"dev-only", "version-filter", "versions-to-keep",
		"version-scheme", "force", "batch", "dry-run",
	}
	for _, name := range flags {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
	assert.Equal(t, "false", cmd.Flags().Lookup("force").DefValue)
	assert.Equal(t, "semver", cmd.Flags().Lookup("version-scheme").DefValue)
}

func TestPositionalArgs(t *testing.T) {
	server, indexSpec, packageSpec, err := positionalArgs([]string{"http://localhost:2414", "user/index1", "delete_me"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:2414", server)
	assert.Equal(t, "user/index1", indexSpec)
	assert.Equal(t, "delete_me", packageSpec)

	server, indexSpec, _, err = positionalArgs([]string{"user", "delete_me"})
	require.NoError(t, err)
	assert.Empty(t, server)
	assert.Equal(t, "user", indexSpec)

	_, _, _, err = positionalArgs([]string{"user"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestResolveConnectionPrefersPositionalServer(t *testing.T) {
	cmd := newCleanCommand()
	require.NoError(t, cmd.Flags().Set("server", "http://flag:2414"))
	require.NoError(t, cmd.Flags().Set("login", "user"))
	require.NoError(t, cmd.Flags().Set("http-retries", "7"))

	conn := resolveConnection(cmd, connectionOptions{Server: "http://flag:2414", Login: "user", HTTPRetries: 7}, "http://arg:2414")
	assert.Equal(t, "http://arg:2414", conn.Server)
	assert.Equal(t, "user", conn.Login)
	assert.Equal(t, 7, conn.HTTPRetries)

	conn = resolveConnection(cmd, connectionOptions{Server: "http://flag:2414"}, "")
	assert.Equal(t, "http://flag:2414", conn.Server)
}

func TestListCommandAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user/index1":
			_, _ = w.Write([]byte(`{"result":{"type":"stage","bases":[],"volatile":true}}`))
		case "/user/index1/delete_me":
			_, _ = fmt.Fprintf(w, `{"result":{"0.1":{"+links":[{"rel":"releasefile","href":"%[1]s/user/index1/+f/45b/301745c6d8bbf/delete_me-0.1.tar.gz"}]},`+
				`"0.2.dev2":{"+links":[{"rel":"releasefile","href":"%[1]s/user/index1/+f/842/84d1283874110/delete_me-0.2.dev2.tar.gz"}]}}}`, "http://"+r.Host)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	var out bytes.Buffer
	previous := newAppService
	newAppService = func() app.Service {
		service := app.NewService()
		service.Out = &out
		return service
	}
	defer func() { newAppService = previous }()

	root := newRootCommand()
	root.SetArgs([]string{"list", server.URL, "user/index1", "delete_me", "--dev-only", "--format", "json"})
	require.NoError(t, root.Execute())

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "0.2.dev2", decoded[0]["version"])
	assert.Equal(t, true, decoded[0]["dev"])
}

func TestCleanCommandRequiresArgs(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"clean", "user"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.Error(t, root.Execute())
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveBool(t *testing.T) {
	got := resolveBool(nil, true, "test_key", "test-flag")
	assert.True(t, got)

	got = resolveBool(nil, false, "test_key", "test-flag")
	assert.False(t, got)
}

func TestResolveInt(t *testing.T) {
	got := resolveInt(nil, 42, "test_key", "test-flag")
	assert.Equal(t, 42, got)
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")
}

func TestFlagChangedAfterSet(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("unsupported package format: delete_me-0.1.rpm"),
			expected: 2,
		},
		{
			name: "already exists",
			err: errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg("dup"),
			expected: 2,
		},
		{
			name: "permission denied",
			err: errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("devpi login failed for user user"),
			expected: 3,
		},
		{
			name: "index not volatile",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("index user/index1 is not volatile, use force to clean it"),
			expected: 4,
		},
		{
			name: "foreign package",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("package delete_me 0.1 on user/index2 does not belong to index user/index1"),
			expected: 4,
		},
		{
			name: "not found",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("not found on devpi: http://localhost:2414/nobody"),
			expected: 5,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("devpi remove failed"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exitCodeForError(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "errbuilder with msg",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("something broke"),
			expected: "something broke",
		},
		{
			name:     "plain error",
			err:      assert.AnError,
			expected: assert.AnError.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorMessage(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
