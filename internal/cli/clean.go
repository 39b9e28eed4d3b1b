package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devpi-cleaner/internal/app"
	"devpi-cleaner/internal/types"
)

type cleanOptions struct {
	Connection     connectionOptions
	Filter         filterOptions
	VersionsToKeep int
	VersionScheme  string
	Force          bool
	Batch          bool
	DryRun         bool
}

func newCleanCommand() *cobra.Command {
	opts := cleanOptions{}
	cmd := &cobra.Command{
		Use:   "clean [server] <user[/index]> <package spec>",
		Short: "Remove packages from a user's indices",
		Long: "Remove the packages matching the package spec and filters from every selected index.\n" +
			"Non-volatile indices are only touched with --force; they are made volatile\n" +
			"for the removal and restored afterwards.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), cmd, opts, args)
		},
	}
	addConnectionFlags(cmd, &opts.Connection)
	addFilterFlags(cmd, &opts.Filter)
	cmd.Flags().IntVar(&opts.VersionsToKeep, "versions-to-keep", 0, "Keep the newest N versions of every package")
	cmd.Flags().StringVar(&opts.VersionScheme, "version-scheme", string(types.VersionSchemeSemver), "Version ordering (semver or pep440, lexical fallback)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Temporarily make non-volatile indices volatile")
	cmd.Flags().BoolVar(&opts.Batch, "batch", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Only print what would be removed")

	_ = viper.BindPFlag("versions_to_keep", cmd.Flags().Lookup("versions-to-keep"))
	_ = viper.BindPFlag("version_scheme", cmd.Flags().Lookup("version-scheme"))
	_ = viper.BindPFlag("force", cmd.Flags().Lookup("force"))
	_ = viper.BindPFlag("batch", cmd.Flags().Lookup("batch"))
	_ = viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))
	return cmd
}

func runClean(ctx context.Context, cmd *cobra.Command, opts cleanOptions, args []string) error {
	server, indexSpec, packageSpec, err := positionalArgs(args)
	if err != nil {
		return err
	}
	service := newAppService()
	result, err := service.Clean(ctx, app.CleanRequest{
		Connection:     resolveConnection(cmd, opts.Connection, server),
		IndexSpec:      indexSpec,
		PackageSpec:    packageSpec,
		Filter:         resolveFilter(cmd, opts.Filter),
		VersionsToKeep: resolveInt(cmd, opts.VersionsToKeep, "versions_to_keep", "versions-to-keep"),
		VersionScheme:  resolveString(cmd, opts.VersionScheme, "version_scheme", "version-scheme"),
		Force:          resolveBool(cmd, opts.Force, "force", "force"),
		Batch:          resolveBool(cmd, opts.Batch, "batch", "batch"),
		DryRun:         resolveBool(cmd, opts.DryRun, "dry_run", "dry-run"),
	})
	if err != nil {
		return err
	}
	switch {
	case result.DryRun:
		fmt.Fprintf(cmd.OutOrStdout(), "dry-run: keep=%d delete=%d\n", result.KeepCount, result.DeleteCount)
	case result.Declined:
		fmt.Fprintln(cmd.OutOrStdout(), "aborted, nothing removed")
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "removed packages: %d\n", result.DeleteCount)
	}
	return nil
}
