package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/app"
)

func newLogsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logs EVENT_ID",
		Short: "List the import history of an event, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				logs, err := a.Service.ListImportLogs(ctx, eventID)
				if err != nil {
					return err
				}
				return opts.print(cmd, logs, func(p *printer) { p.importLogs(logs) })
			})
		},
	}
}
