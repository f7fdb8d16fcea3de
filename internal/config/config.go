package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// BotConfig holds configuration for the bot process.
type BotConfig struct {
	DiscordToken         string
	OllamaURL            string
	OllamaModel          string
	OllamaTimeoutSeconds int
	DBPath               string
	HistoryLimit         int
	ContextTurns         int
	ContextCharBudget    int
	OwnerUserID          int64
	FinnhubAPIKey        string
	GuildID              string
}

// LoadBotConfig reads bot configuration from environment variables.
func LoadBotConfig() (BotConfig, error) {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return BotConfig{}, fmt.Errorf("DISCORD_TOKEN is required in environment")
	}

	var ownerID int64
	if raw := os.Getenv("OWNER_USER_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return BotConfig{}, fmt.Errorf("OWNER_USER_ID must be numeric, got %q", raw)
		}
		ownerID = parsed
	}

	return BotConfig{
		DiscordToken:         token,
		OllamaURL:            envOrDefault("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:          envOrDefault("OLLAMA_MODEL", "llama3"),
		OllamaTimeoutSeconds: envIntOrDefault("OLLAMA_TIMEOUT_SECONDS", 90),
		DBPath:               envOrDefault("DB_PATH", "data/history.db"),
		HistoryLimit:         envIntOrDefault("HISTORY_LIMIT", 1000),
		ContextTurns:         envIntOrDefault("CONTEXT_TURNS", 8),
		ContextCharBudget:    envIntOrDefault("CONTEXT_CHAR_BUDGET", 4000),
		OwnerUserID:          ownerID,
		FinnhubAPIKey:        os.Getenv("FINNHUB_API_KEY"),
		GuildID:              os.Getenv("DEVELOPMENT_SERVER_ID"),
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}
