// Command storefront-devapi serves an in-memory storefront API for local
// development of storefrontctl. All data is lost on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pilab-dev/cartbuilder/internal/apitest"
	"github.com/pilab-dev/cartbuilder/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr       string
		accessTTL  time.Duration
		logLevel   string
		pretty     bool
		signingKey string
	)
	cmd := &cobra.Command{
		Use:          "storefront-devapi",
		Short:        "Run an in-memory storefront API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			logger := log.NewZerologAdapterWithWriter(cmd.ErrOrStderr(), level, pretty)
			opts := []apitest.Option{apitest.WithAccessTTL(accessTTL), apitest.WithLogger(logger)}
			if signingKey != "" {
				opts = append(opts, apitest.WithSigningKey([]byte(signingKey)))
			}
			return serve(cmd.Context(), addr, logger, opts...)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	f.DurationVar(&accessTTL, "access-ttl", 5*time.Minute, "lifetime of access tokens")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	f.BoolVar(&pretty, "log-pretty", true, "human readable logs")
	f.StringVar(&signingKey, "signing-key", os.Getenv("DEVAPI_SIGNING_KEY"), "HMAC key for issued tokens")
	return cmd
}

func serve(ctx context.Context, addr string, logger log.Logger, opts ...apitest.Option) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := apitest.New(opts...)
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Storefront API listening", map[string]interface{}{
			"addr":     addr,
			"base_url": "http://" + addr + apitest.BasePath,
		})
		errCh <- api.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down storefront API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Echo().Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Storefront API shutdown error", err)
		return err
	}
	logger.Info(shutdownCtx, "Storefront API stopped.")
	return nil
}
