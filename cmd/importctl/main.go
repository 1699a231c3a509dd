// Command importctl runs depositor imports and ticketing syncs from the
// command line, with the same configuration as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/app"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/config"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/logging"
)

type globalOptions struct {
	envFile  string
	operator string
	jsonOut  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Import depositor registrations into resale events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before the configuration")
	root.PersistentFlags().StringVar(&opts.operator, "operator", os.Getenv("USER"), "Operator recorded on import logs")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(
		newMigrateCmd(opts),
		newPreviewCmd(opts),
		newImportCmd(opts),
		newSyncCmd(opts),
		newLogsCmd(opts),
		newTicketingCmd(opts),
		newKeysCmd(),
	)
	return root
}

// loadConfig reads the env file when present, then the configuration.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.envFile != "" {
		if _, err := os.Stat(o.envFile); err == nil {
			if err := godotenv.Overload(o.envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", o.envFile, err)
			}
		}
	}
	return config.Load()
}

// withApp runs fn with a connected App and the operator on the context.
func (o *globalOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	// The CLI prints results on stdout; logs go to stderr.
	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx := cmd.Context()
	if o.operator != "" {
		ctx = core.ContextWithOperator(ctx, o.operator)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
