package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/caskstore/cask/internal/logger"
	"github.com/caskstore/cask/internal/ratelimiter"
	"github.com/caskstore/cask/pkg/config"
	"github.com/caskstore/cask/pkg/linkview"
)

func limitRequests(limiter *ratelimiter.RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the share-link HTTP server",
	Long: `Serve internal share links over HTTP. Tokens minted by "cask link"
against backends without native pre-authorized URLs resolve here: the
token names the backend, object and permitted operations, and the
server performs the download, upload or delete on the client's behalf.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reg, err := config.BuildRegistry(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer reg.Close()

		listen := cfg.LinkServer.Listen
		if serveListen != "" {
			listen = serveListen
		}

		handler := http.Handler(linkview.NewHandler(reg))
		if cfg.LinkServer.RequestsPerSecond > 0 {
			limiter := ratelimiter.New(cfg.LinkServer.RequestsPerSecond, cfg.LinkServer.Burst)
			handler = limitRequests(limiter, handler)
		}

		srv := &http.Server{
			Addr:              listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Link server listening on %s", listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errChan:
			return err
		case sig := <-sigChan:
			logger.Info("Received %s, shutting down", sig)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "address to bind (overrides link_server.listen)")
}
