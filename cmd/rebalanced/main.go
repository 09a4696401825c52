package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rebalanced/internal/api"
	"rebalanced/internal/catalog"
	"rebalanced/internal/config"
	"rebalanced/internal/events"
	"rebalanced/internal/kernel"
	"rebalanced/internal/obslog"
	"rebalanced/internal/recovery"
	"rebalanced/internal/wsmonitor"
)

var Version = "dev"

const monitorBroadcastInterval = 5 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rebalanced",
	Short:   "Perfectly Balanced disk-rebalancing daemon",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to settings.cfg (defaults to "+config.Default().ConfigPath+")")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = serveCmd.RunE
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	obslog.Init(obslog.Config{
		Level:      obslog.Level(level),
		JSONOutput: jsonOutput,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon (default command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return runServe(configPath)
	},
}

func runServe(configPath string) error {
	log := obslog.WithComponent("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	stats, err := recovery.Run(store, log)
	if err != nil {
		return fmt.Errorf("crash recovery: %w", err)
	}
	if stats.DataLossCount > 0 {
		log.Error().Int("count", stats.DataLossCount).Msg("crash recovery found unrecoverable moves")
	}

	k := kernel.New()
	hub := events.NewHub(log)
	monitor := wsmonitor.NewHub(log)

	srv := api.NewServer(store, hub, k, monitor, log, cfg)
	router := api.NewRouter(srv)

	monitorStop := make(chan struct{})
	var monitorWg sync.WaitGroup
	monitorWg.Add(1)
	go func() {
		defer monitorWg.Done()
		wsmonitor.Run(monitorStop, monitorBroadcastInterval, monitor, srv.Snapshot)
	}()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown error")
	}

	close(monitorStop)
	monitorWg.Wait()

	// spec.md §5's shutdown sequence for whatever background operation is
	// still running: request cancellation, kill the rsync child directly in
	// case the operation isn't watching ctx.Done() promptly, then give the
	// task a bounded window to actually exit before abandoning it.
	k.RequestCancel()
	k.KillChild()
	if task := k.Task(); task != nil {
		done := make(chan struct{})
		go func() {
			task.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Warn().Msg("background task did not finish within shutdown window, abandoning")
		}
	}

	log.Info().Msg("stopped")
	return nil
}
