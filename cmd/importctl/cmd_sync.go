package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/app"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/eventsync"
)

func newSyncCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import registrations from the ticketing platform",
	}

	var full, ignoreErrors bool
	preview := &cobra.Command{
		Use:   "preview EVENT_ID",
		Short: "Show what the next sync would import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Sync.Preview(ctx, eventID, eventsync.Options{FullResync: full, IgnoreErrors: ignoreErrors})
				if err != nil {
					return err
				}
				return opts.print(cmd, res, func(p *printer) { p.preview(res) })
			})
		},
	}
	preview.Flags().BoolVar(&full, "full", false, "Ignore the watermark and fetch every attendee")
	preview.Flags().BoolVar(&ignoreErrors, "ignore-errors", false, "Report the import as possible despite row errors")

	var syncOpts eventsync.Options
	run := &cobra.Command{
		Use:   "run EVENT_ID",
		Short: "Import the attendees changed since the last sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Sync.Import(ctx, eventID, syncOpts)
				if err != nil {
					return err
				}
				return opts.print(cmd, res, func(p *printer) { p.commit(res) })
			})
		},
	}
	run.Flags().BoolVar(&syncOpts.FullResync, "full", false, "Ignore the watermark and fetch every attendee")
	run.Flags().BoolVar(&syncOpts.SendEmails, "send-emails", false, "Send invitations and registration notices")

	all := &cobra.Command{
		Use:   "all",
		Short: "Run one cycle over every event flagged for automatic sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				report := a.Scheduler().RunOnce(ctx)
				return opts.print(cmd, report, func(p *printer) { p.cycle(report) })
			})
		},
	}

	cmd.AddCommand(preview, run, all)
	return cmd
}
