package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/api/handlers"
	"github.com/commandpost/dispatch-core/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch coordination service",
	Long:  "serve starts the authoritative dispatch API: call and unit state, assignment arbitration, the audit trail and the realtime invalidation channel.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Server.Validate(); err != nil {
			return err
		}

		a := handlers.App{}
		a.Config = cfg.Server

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Initialize(ctx); err != nil {
			return err
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%v", cfg.Server.Port),
			Handler:      a.Router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			zap.S().Infow("dispatch-core is up and running",
				"port", cfg.Server.Port,
				"url", cfg.Server.BaseURL,
			)
			errc <- srv.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errc:
			return err
		case sig := <-stop:
			zap.S().Infow("shutting down", "signal", sig.String())
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}
