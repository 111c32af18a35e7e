package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xhad/handbook/pkg/config"
	"github.com/xhad/handbook/pkg/conversation"
	"github.com/xhad/handbook/pkg/llm"
	"github.com/xhad/handbook/pkg/logger"
	"github.com/xhad/handbook/pkg/rag"
	"github.com/xhad/handbook/pkg/store"
	"github.com/xhad/handbook/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %s\n", e.Error())
		}
		os.Exit(2)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg); err != nil {
		logger.New("main").Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := llm.NewChatModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize chat model: %w", err)
	}

	embedder, err := llm.NewEmbedder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	chunks, err := store.Open(ctx, cfg, embedder)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer chunks.Close()

	conversations, err := conversation.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize conversation store: %w", err)
	}
	defer conversations.Close()

	service := rag.NewService(model, chunks, conversations,
		rag.WithDefaultTopK(cfg.Retrieval.DefaultTopK),
		rag.WithFetchKFloor(cfg.Retrieval.FetchKFloor),
	)
	srv := server.NewServer(server.ConfigFrom(cfg), service, conversations)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log := logger.New("main")
	log.Info("server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shut down gracefully: %w", err)
	}
	log.Info("server stopped")
	return nil
}
