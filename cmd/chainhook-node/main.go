// Command chainhook-node runs the chain-event observer: it ingests Bitcoin
// and Stacks block streams, evaluates registered predicates against them,
// and dispatches matching occurrences to operator-configured sinks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"chainhook/core"
	"chainhook/pkg/config"
	"chainhook/pkg/utils"
)

func main() {
	rootCmd := &cobra.Command{Use: "chainhook-node"}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(versionCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the chainhook-node version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.Version)
		},
	}
}

// serveCmd starts the observer's command loop and its three HTTP servers:
// ingestion, predicate registration/streaming, and diagnostics.
func serveCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the chainhook-node observer and its HTTP servers",
		Run: func(cmd *cobra.Command, args []string) {
			runServe(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", utils.EnvOrDefault("CHAINHOOK_ENV", ""), "environment overlay to merge over config/default.yaml")
	return cmd
}

func runServe(env string) {
	log := newLogger()

	cfg, err := config.Load(env)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if lvl, lerr := logrus.ParseLevel(cfg.Logging.Level); lerr == nil {
		log.SetLevel(lvl)
	}

	metrics := core.NewMetrics(log)
	dispatcher := core.NewDispatcher(log)
	observer := core.NewObserver(cfg.Bitcoin.Retention, cfg.Stacks.Retention, dispatcher, metrics, log)

	hub := newStreamHub()
	observer.Subscribe(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go observer.Run(ctx)

	if cfg.Predicates.BootstrapDir != "" {
		if err := loadBootstrapPredicates(ctx, observer, cfg.Predicates.BootstrapDir, log); err != nil {
			log.WithError(err).Error("failed to load bootstrap predicates")
		}
	}

	ingest := newIngestServer(observer, log, cfg.Stacks.NakamotoEnabled)
	registration := newRegistrationServer(observer, hub, log)
	diagnostics := newDiagnosticsServer(cfg, metrics, log)

	errCh := make(chan error, 3)
	go func() { errCh <- ingest.ListenAndServe(cfg.Ingest.ListenAddr) }()
	go func() { errCh <- registration.ListenAndServe(cfg.Registration.ListenAddr) }()
	go func() { errCh <- diagnostics.ListenAndServe(cfg.Diagnostics.ListenAddr) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.WithError(err).Error("server exited")
	case s := <-sig:
		log.WithField("signal", s).Info("shutting down")
	}

	cancel()
	ingest.Shutdown(context.Background())
	registration.Shutdown(context.Background())
	diagnostics.Shutdown(context.Background())
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}
