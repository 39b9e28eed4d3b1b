package cli

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devpi-cleaner/internal/app"
	"devpi-cleaner/internal/types"
)

type connectionOptions struct {
	Server           string
	Login            string
	Password         string
	Backend          string
	DevpiBinary      string
	ClientDir        string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
}

type filterOptions struct {
	DevOnly       bool
	VersionFilter string
}

func addConnectionFlags(cmd *cobra.Command, opts *connectionOptions) {
	cmd.Flags().StringVar(&opts.Server, "server", "", "devpi server URL (or the first positional argument)")
	cmd.Flags().StringVar(&opts.Login, "login", "", "devpi user to log in as")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Password for --login, ${VAR} references are expanded")
	cmd.Flags().StringVar(&opts.Backend, "backend", string(types.ClientBackendHTTP), "Client backend (http or cli)")
	cmd.Flags().StringVar(&opts.DevpiBinary, "devpi-bin", "devpi", "devpi client binary for the cli backend")
	cmd.Flags().StringVar(&opts.ClientDir, "client-dir", "", "devpi client dir for the cli backend (default: temporary)")
	cmd.Flags().IntVar(&opts.HTTPTimeoutSec, "http-timeout", 60, "HTTP timeout in seconds (0 = default)")
	cmd.Flags().IntVar(&opts.HTTPRetries, "http-retries", 3, "HTTP retries for idempotent requests (0 = default)")
	cmd.Flags().IntVar(&opts.HTTPRetryDelayMs, "http-retry-delay-ms", 200, "HTTP retry base delay in ms (0 = default)")

	_ = viper.BindPFlag("server", cmd.Flags().Lookup("server"))
	_ = viper.BindPFlag("login", cmd.Flags().Lookup("login"))
	_ = viper.BindPFlag("password", cmd.Flags().Lookup("password"))
	_ = viper.BindPFlag("backend", cmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag("devpi_bin", cmd.Flags().Lookup("devpi-bin"))
	_ = viper.BindPFlag("client_dir", cmd.Flags().Lookup("client-dir"))
	_ = viper.BindPFlag("http_timeout_sec", cmd.Flags().Lookup("http-timeout"))
	_ = viper.BindPFlag("http_retries", cmd.Flags().Lookup("http-retries"))
	_ = viper.BindPFlag("http_retry_delay_ms", cmd.Flags().Lookup("http-retry-delay-ms"))
}

func addFilterFlags(cmd *cobra.Command, opts *filterOptions) {
	cmd.Flags().BoolVar(&opts.DevOnly, "dev-only", false, "Only select development versions (containing .dev)")
	cmd.Flags().StringVar(&opts.VersionFilter, "version-filter", "", "Regular expression searched in package versions")

	_ = viper.BindPFlag("dev_only", cmd.Flags().Lookup("dev-only"))
	_ = viper.BindPFlag("version_filter", cmd.Flags().Lookup("version-filter"))
}

func resolveConnection(cmd *cobra.Command, opts connectionOptions, server string) app.Connection {
	if strings.TrimSpace(server) == "" {
		server = resolveString(cmd, opts.Server, "server", "server")
	}
	return app.Connection{
		Server:           server,
		Login:            resolveString(cmd, opts.Login, "login", "login"),
		Password:         resolveString(cmd, opts.Password, "password", "password"),
		Backend:          resolveString(cmd, opts.Backend, "backend", "backend"),
		DevpiBinary:      resolveString(cmd, opts.DevpiBinary, "devpi_bin", "devpi-bin"),
		ClientDir:        resolveString(cmd, opts.ClientDir, "client_dir", "client-dir"),
		HTTPTimeoutSec:   resolveInt(cmd, opts.HTTPTimeoutSec, "http_timeout_sec", "http-timeout"),
		HTTPRetries:      resolveInt(cmd, opts.HTTPRetries, "http_retries", "http-retries"),
		HTTPRetryDelayMs: resolveInt(cmd, opts.HTTPRetryDelayMs, "http_retry_delay_ms", "http-retry-delay-ms"),
	}
}

func resolveFilter(cmd *cobra.Command, opts filterOptions) types.PackageFilter {
	return types.PackageFilter{
		OnlyDev:       resolveBool(cmd, opts.DevOnly, "dev_only", "dev-only"),
		VersionFilter: resolveString(cmd, opts.VersionFilter, "version_filter", "version-filter"),
	}
}

// positionalArgs accepts "<server> <user[/index]> <spec>" or, with the
// server configured elsewhere, "<user[/index]> <spec>".
func positionalArgs(args []string) (server string, indexSpec string, packageSpec string, err error) {
	switch len(args) {
	case 3:
		return args[0], args[1], args[2], nil
	case 2:
		return "", args[0], args[1], nil
	default:
		return "", "", "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("expected [server] <user[/index]> <package spec>")
	}
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
