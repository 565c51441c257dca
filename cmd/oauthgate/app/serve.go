// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/oauthgate/oauthgate/pkg/authproxy"
	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
	"github.com/oauthgate/oauthgate/pkg/authproxy/upstream"
	"github.com/oauthgate/oauthgate/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OAuth proxy server",
	Long: `Start the OAuth proxy server. The upstream identity provider can be
configured either through OIDC discovery (--upstream-issuer) or with explicit
authorization and token endpoint URLs.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 30 * time.Second // Covers the upstream exchange during /callback
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 35 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	flags := serveCmd.Flags()

	flags.String("address", ":8080", "Address to listen on")
	flags.String("issuer", "", "External base URL of this proxy, e.g. https://auth.example.com")
	flags.String("scopes", authproxy.DefaultScope, "Space-separated scopes advertised in discovery documents")

	flags.String("upstream-issuer", "", "Upstream OIDC issuer URL for endpoint discovery")
	flags.String("upstream-authorize-endpoint", "", "Upstream authorization endpoint (overrides discovery)")
	flags.String("upstream-token-endpoint", "", "Upstream token endpoint (overrides discovery)")
	flags.String("upstream-registration-endpoint", "", "Upstream DCR endpoint (overrides discovery)")
	flags.String("upstream-client-id", "", "Client ID registered with the upstream provider")
	flags.String("upstream-client-secret", "", "Client secret for the upstream provider (omit for public clients)")
	flags.String("upstream-scopes", "", "Space-separated scopes to request from the upstream provider")

	flags.String("storage", "memory", "State storage backend: memory or redis")
	flags.String("redis-addr", "localhost:6379", "Redis address when storage=redis")
	flags.String("redis-username", "", "Redis username")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database number")
	flags.String("redis-key-prefix", "oauthgate:", "Prefix for all Redis keys")

	if err := viper.BindPFlags(flags); err != nil {
		logger.Fatalf("Failed to bind serve flags: %v", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	address := viper.GetString("address")
	issuer := viper.GetString("issuer")
	if issuer == "" {
		return fmt.Errorf("issuer flag is required")
	}

	proxyConfig := &authproxy.Config{
		Issuer:          issuer,
		ScopesSupported: strings.Fields(viper.GetString("scopes")),
	}
	if err := proxyConfig.Validate(); err != nil {
		return fmt.Errorf("invalid proxy configuration: %w", err)
	}

	store, err := newStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create state store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("Failed to close state store: %v", err)
		}
	}()

	provider, err := newUpstreamProvider(ctx, proxyConfig)
	if err != nil {
		return fmt.Errorf("failed to create upstream provider: %w", err)
	}

	router, err := authproxy.NewRouter(proxyConfig, store, provider)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(serverRequestTimeout),
		loggingMiddleware,
	)
	router.Routes(mux)

	server := &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	// Run until the listener fails or a shutdown signal arrives.
	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		logger.Infof("OAuth proxy listening on %s (issuer %s)", address, proxyConfig.Issuer)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server forced to shutdown: %v", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}

// loggingMiddleware logs one structured line per request. Query strings are
// deliberately not logged: authorization requests carry states, challenges,
// and codes in them.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, req)

		logger.Infow("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(req.Context()),
		)
	})
}

// newStore builds the state store from the storage flags.
func newStore(ctx context.Context) (state.Store, error) {
	cfg := state.Config{
		Backend: state.Backend(viper.GetString("storage")),
		Redis: state.RedisConfig{
			Addr:      viper.GetString("redis-addr"),
			Username:  viper.GetString("redis-username"),
			Password:  viper.GetString("redis-password"),
			DB:        viper.GetInt("redis-db"),
			KeyPrefix: viper.GetString("redis-key-prefix"),
		},
	}
	return state.NewStore(ctx, cfg)
}

// newUpstreamProvider builds the upstream provider, preferring OIDC
// discovery when an upstream issuer is configured.
func newUpstreamProvider(ctx context.Context, proxyConfig *authproxy.Config) (upstream.Provider, error) {
	cfg := &upstream.Config{
		AuthorizationEndpoint: viper.GetString("upstream-authorize-endpoint"),
		TokenEndpoint:         viper.GetString("upstream-token-endpoint"),
		RegistrationEndpoint:  viper.GetString("upstream-registration-endpoint"),
		ClientID:              viper.GetString("upstream-client-id"),
		ClientSecret:          viper.GetString("upstream-client-secret"),
		RedirectURI:           proxyConfig.CallbackURL(),
		Scopes:                strings.Fields(viper.GetString("upstream-scopes")),
	}

	if upstreamIssuer := viper.GetString("upstream-issuer"); upstreamIssuer != "" {
		return upstream.NewProviderFromIssuer(ctx, upstreamIssuer, cfg)
	}
	return upstream.NewOAuth2Provider(cfg)
}
