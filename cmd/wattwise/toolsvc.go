package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/wattwise/internal/artifact"
	"github.com/user/wattwise/internal/auth"
	"github.com/user/wattwise/internal/config"
	"github.com/user/wattwise/internal/tools"
	"github.com/user/wattwise/internal/toolsvc"
)

func toolsvcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toolsvc",
		Short: "Run the tool-execution service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsvc()
		},
	}
}

func runToolsvc() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.ToolService.JWTSecret == "" {
		return errors.New("tool_service.jwt_secret is required")
	}
	creds := make([]auth.Credential, 0, len(cfg.ToolService.Credentials)+1)
	for _, c := range cfg.ToolService.Credentials {
		creds = append(creds, auth.Credential{ClientID: c.ClientID, ClientSecret: c.ClientSecret})
	}
	// The host's own pair doubles as an allow-list entry for single-file
	// dev configs.
	if cfg.ToolService.ClientID != "" && cfg.ToolService.ClientSecret != "" {
		creds = append(creds, auth.Credential{
			ClientID:     cfg.ToolService.ClientID,
			ClientSecret: cfg.ToolService.ClientSecret,
		})
	}
	if len(creds) == 0 {
		return errors.New("tool_service allow-list is empty")
	}

	store, err := artifact.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	registry, err := tools.Builtin(store, cfg.ToolService.SearchBaseURL)
	if err != nil {
		return err
	}
	executor, err := toolsvc.NewExecutor(registry, toolsvc.ExecutorOptions{
		CacheTTL:      cfg.ToolService.CacheTTL,
		RatePerSecond: cfg.ToolService.RatePerSecond,
		RateBurst:     cfg.ToolService.RateBurst,
	}, logger)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(cfg.ToolService.JWTSecret, cfg.ToolService.TokenTTL, creds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := toolsvc.NewServer(cfg.ToolService.Addr, authSvc, executor, store, logger)
	return srv.Start(ctx)
}
