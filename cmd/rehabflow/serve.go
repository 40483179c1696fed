package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/rehabflow/internal/api"
	"alcyxob/rehabflow/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			orchestrator, err := a.newOrchestrator()
			if err != nil {
				return err
			}

			if a.cfg.Log.Mode == "production" || a.cfg.Log.Mode == "prod" {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery(), api.RequestLogger(a.log))
			api.SetupRoutes(router, a.records, orchestrator, a.presigner, storage.DefaultPresignedURLExpiry)

			server := &http.Server{
				Addr:         a.cfg.Server.Address,
				Handler:      router,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: a.cfg.Generation.Timeout + 10*time.Second, // submit waits for the generation call
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("server starting", "address", a.cfg.Server.Address)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// Wait for interrupt signal to gracefully shut down the server
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-quit:
			}
			a.log.Info("shutting down server")

			ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			orchestrator.Abandon()
			if err := server.Shutdown(ctxShutdown); err != nil {
				return err
			}
			a.log.Info("server exiting")
			return nil
		},
	}
}
