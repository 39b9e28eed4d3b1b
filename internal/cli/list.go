package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devpi-cleaner/internal/app"
	"devpi-cleaner/internal/types"
)

type listOptions struct {
	Connection connectionOptions
	Filter     filterOptions
	Format     string
	Output     string
}

func newListCommand() *cobra.Command {
	opts := listOptions{}
	cmd := &cobra.Command{
		Use:   "list [server] <user[/index]> <package spec>",
		Short: "List packages on a user's indices",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd, opts, args)
		},
	}
	addConnectionFlags(cmd, &opts.Connection)
	addFilterFlags(cmd, &opts.Filter)
	cmd.Flags().StringVar(&opts.Format, "format", string(types.ListingFormatText), "Output format (text, json, or yaml)")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Write the listing to this file instead of stdout")
	_ = viper.BindPFlag("format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, opts listOptions, args []string) error {
	server, indexSpec, packageSpec, err := positionalArgs(args)
	if err != nil {
		return err
	}
	service := newAppService()
	_, err = service.List(ctx, app.ListRequest{
		Connection:  resolveConnection(cmd, opts.Connection, server),
		IndexSpec:   indexSpec,
		PackageSpec: packageSpec,
		Filter:      resolveFilter(cmd, opts.Filter),
		Format:      resolveString(cmd, opts.Format, "format", "format"),
		Output:      resolveString(cmd, opts.Output, "output", "output"),
	})
	return err
}
