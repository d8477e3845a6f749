package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aerocrew/towerchat/internal/auth"
	"github.com/aerocrew/towerchat/internal/config"
	"github.com/aerocrew/towerchat/internal/hub"
	"github.com/aerocrew/towerchat/internal/observability"
	"github.com/aerocrew/towerchat/internal/store"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		Long: `Start the towerchat server: the WebSocket endpoint for real-time
messaging plus the /healthz and /metrics routes. Shuts down gracefully on
SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := observability.NewMetrics(nil)
	h := hub.New(hub.Options{
		Store:     st,
		Verifier:  auth.NewJWTVerifier(cfg.Auth.JWTSecret),
		Metrics:   metrics,
		Logger:    logger,
		TypingTTL: cfg.Hub.TypingTTL,
	})
	server := hub.NewServer(cfg, h, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}

func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			switch cfg.Store.Driver {
			case "postgres":
				st, err := store.NewPostgresStore(cfg.Store.DSN, nil)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Migrate(cmd.Context()); err != nil {
					return err
				}
			case "sqlite":
				// Opening a sqlite store applies the schema.
				st, err := store.NewSQLiteStore(cfg.Store.Path)
				if err != nil {
					return err
				}
				defer st.Close()
			default:
				return fmt.Errorf("store driver %q does not use migrations", cfg.Store.Driver)
			}
			fmt.Println("schema applied")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func buildTokenCmd() *cobra.Command {
	var (
		secret    string
		accountID string
		expiry    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT for an account",
		Long: `Mint an HS256 token signed with the configured secret. Intended for
local development only; production tokens come from the identity provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" || accountID == "" {
				return fmt.Errorf("--secret and --account are required")
			}
			token, err := auth.MintToken(secret, accountID, expiry)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "JWT signing secret")
	cmd.Flags().StringVar(&accountID, "account", "", "Account ID for the subject claim")
	cmd.Flags().DurationVar(&expiry, "expiry", 24*time.Hour, "Token lifetime (0 for no expiry)")
	return cmd
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgresStore(cfg.Store.DSN, nil)
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.Path)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
