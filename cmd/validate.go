package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/williamokano/backup_receiver/pkg/config"
	"github.com/williamokano/backup_receiver/pkg/logger"
	"github.com/williamokano/backup_receiver/pkg/state"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config]",
	Short: "Check a configuration file and list the resulting routes",
	Long: `validate runs the schema check, decodes the document and builds the storage
backends without sending any data. Each backup route is listed with the
backend it resolves to.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("config")
		if len(args) == 1 {
			path = args[0]
		}
		return validate(cmd.Context(), cmd.OutOrStdout(), path)
	},
}

func validate(ctx context.Context, out io.Writer, path string) error {
	cfg, err := config.ParseConfig(path)
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, "console")
	reg, routes := state.Build(ctx, cfg, log)
	defer reg.Close() //nolint:errcheck

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BACKUP\tSTORAGE\tKIND\tFILENAME")

	unresolved := 0
	for _, id := range routes.IDs() {
		route, _ := routes.Lookup(id)

		kind := "MISSING"
		if backend, ok := reg.Get(route.Storage); ok {
			kind = backend.Type()
		} else {
			unresolved++
		}

		template := route.DefaultFilename
		if template == "" {
			template = route.Filename
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, route.Storage, kind, template)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if unresolved > 0 {
		return fmt.Errorf("%d backup route(s) reference a storage backend that is not available", unresolved)
	}
	fmt.Fprintf(out, "%s is valid: %d backend(s), %d backup route(s)\n", path, reg.Len(), routes.Len())
	return nil
}
