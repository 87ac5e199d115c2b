// cmd/server/main.go
package main

import (
	"log"
	"log/slog"

	"github.com/Fumiaki0604/ga4-analytics-chat/internal/analyzer"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/anomaly"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/config"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/ga4"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/llm"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/query"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ga4Client, err := ga4.NewClient(cfg.GA4)
	if err != nil {
		log.Fatalf("failed to create GA4 client: %v", err)
	}

	llmProvider, err := llm.NewOpenAI(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("failed to create LLM provider: %v", err)
	}

	var classifier query.Classifier
	switch cfg.Classifier.Strategy {
	case "llm":
		classifier = query.NewLLMClassifier(llmProvider, cfg.OpenAI.Model)
	default:
		classifier = query.NewKeywordClassifier()
	}
	slog.Info("classifier strategy selected", "strategy", cfg.Classifier.Strategy)

	analyzer := analyzer.New(classifier, ga4Client)
	insights := anomaly.NewInsights(ga4Client, llmProvider, cfg.OpenAI.Model)

	srv := server.New(*cfg, analyzer, insights)
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
