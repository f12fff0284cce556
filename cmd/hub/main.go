// The hub backend: device sessions, signaling broker, CRUD surface and
// metrics, all on two listeners.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/app"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/config"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/metrics"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/wsutil"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "hub",
		Short: "Doorbell backend hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")

	if err := root.Execute(); err != nil {
		log.Fatalf("[hub] %v", err)
	}
}

func run(cfg *config.Config) error {
	deps, err := app.Build(cfg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	deps.HTTP.Register(mux)
	wsutil.WithWS(mux, "/ws", deps.Sessions.ServeWS)
	wsutil.WithWS(mux, "/signaling", deps.Signals.ServeWS)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		log.Printf("[hub] metrics on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[hub] metrics listener: %v", err)
		}
	}()

	go func() {
		log.Printf("[hub] listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[hub] listener: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[hub] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	metricsSrv.Shutdown(ctx)
	return srv.Shutdown(ctx)
}
