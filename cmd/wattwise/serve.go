package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/wattwise/internal/agent"
	"github.com/user/wattwise/internal/compose"
	"github.com/user/wattwise/internal/config"
	"github.com/user/wattwise/internal/delivery"
	"github.com/user/wattwise/internal/gateway"
	"github.com/user/wattwise/internal/realtime"
	"github.com/user/wattwise/internal/server"
	"github.com/user/wattwise/internal/session"
	"github.com/user/wattwise/internal/toolclient"
	"github.com/user/wattwise/internal/types"
	"github.com/user/wattwise/pkg/llm"
	"github.com/user/wattwise/pkg/llm/openai"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewManager()
	janitor := session.NewJanitor(sessions, cfg.Session.IdleTTL, logger)
	if err := janitor.Start(cfg.Session.JanitorSchedule); err != nil {
		return err
	}
	defer janitor.Stop()

	tools := toolclient.New(toolclient.Config{
		BaseURL:      cfg.ToolService.BaseURL,
		ClientID:     cfg.ToolService.ClientID,
		ClientSecret: cfg.ToolService.ClientSecret,
	}, logger)
	if err := tools.Connect(ctx); err != nil {
		return fmt.Errorf("connect to tool service: %w", err)
	}

	provider := openai.New(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	composer, err := compose.NewComposer(cfg.LLM.HistoryBudget)
	if err != nil {
		return err
	}

	events := delivery.NewRegistry(logger)
	hub := realtime.NewHub(logger)
	events.Register("websocket", hub.Handler())

	resolver := agent.ResolverFunc(func(ctx context.Context, path string) error {
		_, err := tools.FetchArtifact(ctx, path)
		return err
	})

	orchestrator := agent.New(provider, composer, sessions, tools, resolver, events, agent.Options{
		MaxIterations:       cfg.Orchestrator.MaxIterations,
		TurnTimeout:         cfg.Orchestrator.TurnTimeout,
		DispatchConcurrency: cfg.Orchestrator.DispatchConcurrency,
	}, logger)

	queue := gateway.NewQueue(cfg.Orchestrator.MaxConcurrentTurns,
		func(ctx context.Context, id types.SessionID, text string) (*agent.Turn, error) {
			return orchestrator.RunTurn(ctx, id, text)
		}, logger)

	srv := server.New(cfg.Server.Addr, sessions, queue, hub, tools, logger)
	err = srv.Start(ctx)
	queue.WaitIdle()
	return err
}
