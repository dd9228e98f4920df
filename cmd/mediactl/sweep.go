package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipehub/internal/database"
	"recipehub/internal/domain/upload"
)

func newSweepCommand(opts *options) *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove partial uploads and files no record refers to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(opts.databaseURL)
			if err != nil {
				return err
			}
			if err := database.Migrate(db, &upload.MediaUpload{}); err != nil {
				return err
			}
			policy := upload.NewPolicy(opts.uploadsDir)
			service := upload.NewService(upload.NewRepository(db), policy, nil, nil)

			referenced, err := service.Referenced(cmd.Context())
			if err != nil {
				return fmt.Errorf("load referenced files: %w", err)
			}

			report, err := upload.Sweep(cmd.Context(), upload.SweepOptions{
				Root:       policy.Root(),
				OlderThan:  olderThan,
				Referenced: referenced,
				DryRun:     dryRun,
			})
			if err != nil {
				return err
			}

			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			out := cmd.OutOrStdout()
			for _, p := range report.Partials {
				fmt.Fprintf(out, "%s partial %s\n", verb, p)
			}
			for _, p := range report.Orphans {
				fmt.Fprintf(out, "%s orphan %s\n", verb, p)
			}
			for _, p := range report.Failed {
				fmt.Fprintf(out, "failed %s\n", p)
			}
			fmt.Fprintf(out, "partials=%d orphans=%d failed=%d\n", len(report.Partials), len(report.Orphans), len(report.Failed))
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d files could not be removed", len(report.Failed))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "only touch files older than this")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
	return cmd
}
