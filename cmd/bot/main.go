package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/plexllm/llamabot/internal/config"
	"github.com/plexllm/llamabot/internal/db"
	"github.com/plexllm/llamabot/internal/discord"
	"github.com/plexllm/llamabot/internal/finance"
	"github.com/plexllm/llamabot/internal/ollama"
	"github.com/plexllm/llamabot/internal/store"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadBotConfig()
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		log.Fatalf("[bot] failed to init schema: %v", err)
	}

	st := store.New(database)
	llm := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, time.Duration(cfg.OllamaTimeoutSeconds)*time.Second)
	fin := finance.NewClient(finance.DefaultCoinGeckoBase, finance.DefaultFinnhubBase, cfg.FinnhubAPIKey, 10*time.Second)

	bot, err := discord.New(cfg, st, llm, fin)
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("[bot] starting model=%s ollama=%s db=%s", cfg.OllamaModel, cfg.OllamaURL, cfg.DBPath)
	if err := bot.Run(ctx); err != nil {
		log.Fatalf("[bot] %v", err)
	}
	log.Printf("[bot] shutting down")
}
