// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name" default:"trendsignal"`
	Env         string `yaml:"env" default:"dev" validate:"oneof=dev staging prod"`
	MetricsAddr string `yaml:"metrics_addr" default:":2112"`
	LogLevel    string `yaml:"log_level" default:"info"`
}

// Market describes the proving market the forecast request is submitted to.
type Market struct {
	Provider          string `yaml:"provider" default:"stub" validate:"oneof=stub rest stream"`
	BaseURL           string `yaml:"base_url" validate:"required_unless=Provider stub,omitempty,url"`
	StreamURL         string `yaml:"stream_url" validate:"required_if=Provider stream,omitempty,url"`
	ProgramURL        string `yaml:"program_url" validate:"omitempty,url"`
	PollIntervalMs    int    `yaml:"poll_interval_ms" default:"5000" validate:"gte=100"`
	SubmitTimeoutSecs int    `yaml:"submit_timeout_secs" default:"30" validate:"gte=1"`
}

// Contract points at the ledger contract that stores the published signal.
type Contract struct {
	BaseURL           string `yaml:"base_url" validate:"omitempty,url"`
	Address           string `yaml:"address" validate:"omitempty,startswith=0x"`
	TxTimeoutSecs     int    `yaml:"tx_timeout_secs" default:"30" validate:"gte=1"`
	ConfirmIntervalMs int    `yaml:"confirm_interval_ms" default:"1000" validate:"gte=50"`
}

// Recovery tunes the plausibility window the journal decoder accepts when
// scanning fulfillment payloads.
type Recovery struct {
	MaxConfidence   uint64 `yaml:"max_confidence" default:"100" validate:"lte=100"`
	MinPredictedWei string `yaml:"min_predicted_wei" default:"100000000000000000" validate:"omitempty,numeric"`
}

// Wallet stores the fallback signing key; the environment takes precedence.
type Wallet struct {
	PrivateKeyHex string `yaml:"private_key_hex" validate:"omitempty,hexadecimal"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Market   Market   `yaml:"market"`
	Contract Contract `yaml:"contract"`
	Recovery Recovery `yaml:"recovery"`
	Wallet   Wallet   `yaml:"wallet"`
}

var validate = validator.New()

// Load reads a YAML file from disk and hydrates a Config struct, filling
// defaults for anything the file leaves out and validating the result.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &config, nil
}

// LoadWithEnv loads config from YAML and then applies environment variable
// overrides for the endpoints that change between deployments.
func LoadWithEnv(path string) (*Config, error) {
	config, err := Load(path)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("MARKET_PROVIDER"); v != "" {
		config.Market.Provider = v
	}
	if v := os.Getenv("MARKET_BASE_URL"); v != "" {
		config.Market.BaseURL = v
	}
	if v := os.Getenv("MARKET_STREAM_URL"); v != "" {
		config.Market.StreamURL = v
	}
	if v := os.Getenv("MARKET_PROGRAM_URL"); v != "" {
		config.Market.ProgramURL = v
	}
	if v := os.Getenv("CONTRACT_BASE_URL"); v != "" {
		config.Contract.BaseURL = v
	}
	if v := os.Getenv("CONTRACT_ADDRESS"); v != "" {
		config.Contract.Address = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.App.LogLevel = v
	}
	return config, nil
}
