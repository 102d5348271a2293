package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/config"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/hub"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/observability"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/server"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hallway-api",
		Short: "Hallway realtime chat backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("storage-driver", defaults.GetString("storage.driver"), "Persistence engine (file or sqlite)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("history-limit", defaults.GetInt("chat.history_limit"), "Maximum retained chat messages")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "storage.driver", "storage-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "chat.history_limit", "history-limit")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	stores, err := storage.Open(appConfig, logger)
	if err != nil {
		return err
	}
	defer stores.Close() //nolint:errcheck

	sessionManager, err := auth.NewSessionManager(auth.SessionManagerConfig{
		SigningSecret: []byte(appConfig.SessionSecret),
		CookieName:    appConfig.SessionCookieName,
		TokenTTL:      time.Duration(appConfig.SessionTTLMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}

	var identityVerifier server.IdentityVerifier
	var oauthFlow server.OAuthFlow
	if appConfig.GoogleClientID != "" {
		verifier, err := auth.NewIdentityVerifier(auth.IdentityVerifierConfig{
			Audience: appConfig.GoogleClientID,
			JWKSURL:  appConfig.GoogleJWKSURL,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		identityVerifier = verifier

		flow, err := auth.NewFlow(auth.FlowConfig{
			ClientID:     appConfig.GoogleClientID,
			ClientSecret: appConfig.GoogleClientSecret,
			RedirectURL:  appConfig.GoogleRedirectURL,
		})
		if err != nil {
			return err
		}
		oauthFlow = flow
	} else {
		logger.Warn("google client id unset, sign-in disabled")
	}

	usersService, err := users.NewService(users.ServiceConfig{Store: stores.Users})
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics("hallway")
	chatHub := hub.New(hub.Config{Logger: logger, Metrics: metrics})

	chatService, err := chat.NewService(chat.ServiceConfig{
		Store:       stores.Messages,
		Broadcaster: chatHub,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Flow:     oauthFlow,
		Verifier: identityVerifier,
		Sessions: sessionManager,
		Users:    usersService,
		Chat:     chatService,
		Hub:      chatHub,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
