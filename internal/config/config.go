package config

import (
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server     ServerConfig
	OpenAI     OpenAIConfig
	GA4        GA4Config
	Classifier ClassifierConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"8000"`
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
}

type OpenAIConfig struct {
	Provider       string `envconfig:"OPENAI_PROVIDER" default:"openai"`
	APIKey         string `envconfig:"OPENAI_API_KEY" required:"true"`
	APIEndpoint    string `envconfig:"OPENAI_ENDPOINT" default:"https://api.openai.com/v1"`
	Model          string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	DeploymentName string `envconfig:"OPENAI_DEPLOYMENT" default:"gpt-4o"`
	APIVersion     string `envconfig:"OPENAI_API_VERSION" default:"2023-05-15"`
}

type GA4Config struct {
	DataEndpoint  string        `envconfig:"GA4_DATA_ENDPOINT" default:"https://analyticsdata.googleapis.com/v1beta"`
	AdminEndpoint string        `envconfig:"GA4_ADMIN_ENDPOINT" default:"https://analyticsadmin.googleapis.com/v1beta"`
	Timeout       time.Duration `envconfig:"GA4_TIMEOUT" default:"30s"`
}

type ClassifierConfig struct {
	// Strategy selects how questions are interpreted: "keyword" for the
	// deterministic table-driven classifier, "llm" for model-assisted
	// classification with a keyword-equivalent fallback.
	Strategy string `envconfig:"CLASSIFIER_STRATEGY" default:"keyword"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("configuration loaded successfully")
	return &cfg, nil
}
