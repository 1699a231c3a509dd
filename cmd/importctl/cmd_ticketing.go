package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/app"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/secrets"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/ticketing"
)

func newTicketingCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticketing",
		Short: "Browse the ticketing platform and manage its credentials",
	}

	events := &cobra.Command{
		Use:   "events",
		Short: "List the events visible to the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Sync.RemoteEvents(ctx)
				if err != nil {
					return err
				}
				return opts.print(cmd, list, func(p *printer) { p.remoteEvents(list) })
			})
		},
	}

	sessions := &cobra.Command{
		Use:   "sessions EVENT_REF",
		Short: "List the sessions of a ticketing event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Sync.RemoteSessions(ctx, args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd, list, func(p *printer) { p.remoteSessions(list) })
			})
		},
	}

	var creds ticketing.Credentials
	setCreds := &cobra.Command{
		Use:   "credentials",
		Short: "Encrypt and store the ticketing API credentials",
		Long: "Encrypt and store the ticketing API credentials.\n\n" +
			"The key is read from --key, or from TICKETING_API_KEY so it stays out of the shell history.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Key == "" {
				creds.Key = os.Getenv("TICKETING_API_KEY")
			}
			if creds.Empty() {
				return errors.New("both --user and a key are required")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Sync.SaveCredentials(ctx, creds); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ticketing credentials saved")
				return nil
			})
		},
	}
	setCreds.Flags().StringVar(&creds.User, "user", "", "API user")
	setCreds.Flags().StringVar(&creds.Key, "key", "", "API key")

	cmd.AddCommand(events, sessions, setCreds)
	return cmd
}

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the keys protecting stored credentials",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate ID",
		Short: "Print a new SECRETS_KEYS entry",
		Long: "Print a new SECRETS_KEYS entry.\n\n" +
			"Prepend it to SECRETS_KEYS to rotate: the first key encrypts, every key decrypts.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", args[0], key)
			return nil
		},
	})
	return cmd
}
