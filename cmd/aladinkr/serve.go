package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/justyntemme/aladinkr/internal/api"
	"github.com/justyntemme/aladinkr/internal/auth"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metadata API over HTTP",
		Long: `Starts the HTTP API. When server.jwt_secret is configured every lookup
endpoint requires a bearer token issued by "aladinkr token".`,
		Example: `  aladinkr serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			db, err := a.openCache()
			if err != nil {
				return err
			}
			defer db.Close()

			var issuer *auth.Issuer
			if a.cfg.Server.JWTSecret != "" {
				if issuer, err = auth.NewIssuer(a.cfg.Server.JWTSecret, auth.DefaultTTL); err != nil {
					return err
				}
			} else {
				a.logger.Warn("no jwt secret configured, API is unauthenticated")
			}

			gin.SetMode(gin.ReleaseMode)
			handler := api.NewHandler(a.newService(db), db, 4*a.cfg.Timeout, a.logger)
			server := &http.Server{
				Addr:    addr,
				Handler: api.NewRouter(handler, issuer),
			}

			serverErr := make(chan error, 1)
			go func() {
				a.logger.Info("aladinkr API listening", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				a.logger.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("Server shutdown failed", "err", err)
					return err
				}
				a.logger.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}
