package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"igrelay/pkg/relay"
	"igrelay/pkg/storage"
	"igrelay/pkg/telegram"
)

var (
	runTargets  []string
	runInterval string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll accounts and relay new stories (default)",
	Long: `Start the relay loop.

On startup igrelay loads the saved Instagram session (or logs in and saves
one), connects to Telegram, and then polls every target account in order.
Between cycles it sleeps for the poll interval. When Instagram rejects the
session it logs in again and carries on; any other failure makes it wait for
the backoff delay before the next cycle.

Stop it with Ctrl+C or SIGTERM.`,
	Example: `  # Use TARGET_USERS and friends from the environment or .env
  igrelay run

  # Override the account list and interval
  igrelay run --targets alice,bob --interval 10m`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceVar(&runTargets, "targets", nil, "accounts to poll (overrides TARGET_USERS)")
	runCmd.Flags().StringVar(&runInterval, "interval", "", "time between poll cycles, e.g. 30m (overrides IGRELAY_POLL_INTERVAL)")
}

func runRelay(cmd *cobra.Command, args []string) error {
	if runInterval != "" {
		if err := os.Setenv("IGRELAY_POLL_INTERVAL", runInterval); err != nil {
			return err
		}
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if len(runTargets) > 0 {
		cfg.MergeCommandLineFlags(map[string]interface{}{"targets": runTargets})
	}
	if err := cfg.ValidateRelay(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(map[string]interface{}{
		"version":  version,
		"accounts": cfg.Relay.TargetUsers,
		"data_dir": cfg.Storage.ResolvedDataDir(),
	}).Info("igrelay starting")

	store, err := openSeenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open seen store: %w", err)
	}
	defer store.Close()

	sessions, err := newSessionManager(cfg, log)
	if err != nil {
		return err
	}
	if err := sessions.Start(ctx); err != nil {
		return fmt.Errorf("failed to start instagram session: %w", err)
	}

	bot, err := telegram.New(&cfg.Telegram, log)
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}

	spool, err := storage.NewManager(cfg.Storage.DownloadsPath())
	if err != nil {
		return fmt.Errorf("failed to prepare downloads directory: %w", err)
	}

	relayer := relay.NewRelayer(store, bot, spool, relay.Options{
		CaptionTemplate: cfg.Relay.CaptionTemplate,
		KeepDownloads:   cfg.Relay.KeepDownloads,
	}, log)

	supervisor := relay.NewSupervisor(relay.SupervisorConfig{
		Accounts:     cfg.Relay.TargetUsers,
		PollInterval: cfg.Relay.PollInterval,
		BackoffDelay: cfg.Relay.BackoffDelay,
		ReauthPause:  cfg.Relay.ReauthPause,
	}, sessions, relay.NewPoller(log), relayer, log)

	err = supervisor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("Shutting down")
		return nil
	}
	return err
}
