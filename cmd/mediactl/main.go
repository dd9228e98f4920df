// Command mediactl runs maintenance tasks against the uploads root.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"recipehub/internal/config"
	"recipehub/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	uploadsDir  string
	databaseURL string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "mediactl",
		Short:         "Maintenance for recipe media uploads",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel)
			if !cmd.Flags().Changed("uploads-dir") {
				opts.uploadsDir = cfg.UploadsDir
			}
			if !cmd.Flags().Changed("database") {
				opts.databaseURL = cfg.DatabaseURL
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.uploadsDir, "uploads-dir", "", "uploads root (default $UPLOADS_DIR)")
	root.PersistentFlags().StringVar(&opts.databaseURL, "database", "", "database URL (default $DATABASE_URL)")

	root.AddCommand(
		newBootstrapCommand(opts),
		newSweepCommand(opts),
		newTokenCommand(),
	)
	return root
}
