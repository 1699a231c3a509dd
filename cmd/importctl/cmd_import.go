package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/app"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/source"
)

type fileOptions struct {
	profile      string
	ignoreErrors bool
	sendEmails   bool
}

func newPreviewCmd(opts *globalOptions) *cobra.Command {
	var fo fileOptions

	cmd := &cobra.Command{
		Use:   "preview EVENT_ID FILE",
		Short: "Classify an export against an event without writing anything",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, src, err := parseFileArgs(args, fo.profile)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Service.Preview(ctx, eventID, src, core.PreviewOptions{IgnoreErrors: fo.ignoreErrors})
				if err != nil {
					return err
				}
				return opts.print(cmd, res, func(p *printer) { p.preview(res) })
			})
		},
	}
	cmd.Flags().StringVar(&fo.profile, "profile", "", "Column profile (default: detect)")
	cmd.Flags().BoolVar(&fo.ignoreErrors, "ignore-errors", false, "Report whether the import would go through with row errors skipped")
	return cmd
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	var fo fileOptions

	cmd := &cobra.Command{
		Use:   "import EVENT_ID FILE",
		Short: "Import an export into an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, src, err := parseFileArgs(args, fo.profile)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Service.Commit(ctx, eventID, src, core.CommitOptions{
					IgnoreErrors: fo.ignoreErrors,
					SendEmails:   fo.sendEmails,
				})
				if err != nil {
					return describe(cmd, err)
				}
				return opts.print(cmd, res, func(p *printer) { p.commit(res) })
			})
		},
	}
	cmd.Flags().StringVar(&fo.profile, "profile", "", "Column profile (default: detect)")
	cmd.Flags().BoolVar(&fo.ignoreErrors, "ignore-errors", false, "Skip rows with errors instead of refusing the file")
	cmd.Flags().BoolVar(&fo.sendEmails, "send-emails", false, "Send invitations and registration notices")
	return cmd
}

func parseFileArgs(args []string, profile string) (uuid.UUID, *source.File, error) {
	eventID, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid event id %q: %w", args[0], err)
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return uuid.Nil, nil, err
	}
	src, err := source.NewFile(filepath.Base(args[1]), data, profile)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return eventID, src, nil
}
