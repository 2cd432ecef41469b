// Package config loads the YAML settings of the mpctl tool.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwdwow/mp-go/constants"
	"github.com/dwdwow/mp-go/pipeline"
)

// Signer modes
const (
	SignerLocal  = "local"
	SignerBridge = "bridge"
)

// Environment overrides
const (
	EnvRiskAPIURL = "MP_RISK_API_URL"
	EnvNodeURL    = "MP_NODE_URL"
	EnvPrivateKey = "MP_PRIVATE_KEY"
)

// Config captures every runtime setting. Secrets never live in the file.
type Config struct {
	Service  string         `yaml:"service"`
	Env      string         `yaml:"env"`
	LogLevel string         `yaml:"log_level"`
	RiskAPI  RiskAPIConfig  `yaml:"risk_api"`
	Node     NodeConfig     `yaml:"node"`
	Portal   PortalConfig   `yaml:"portal"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Signer   SignerConfig   `yaml:"signer"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RiskAPIConfig points at the risk and ticket service
type RiskAPIConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
}

// NodeConfig points at the Movement full node
type NodeConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	ChainID      uint8         `yaml:"chain_id"`
	MaxGas       uint64        `yaml:"max_gas"`
	Expiration   time.Duration `yaml:"expiration"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PortalConfig names the on-chain entry module
type PortalConfig struct {
	Address string `yaml:"address"`
	Module  string `yaml:"module"`
}

// PipelineConfig tunes the action pipeline
type PipelineConfig struct {
	SigningTimeout time.Duration `yaml:"signing_timeout"`
	PreviewRisk    bool          `yaml:"preview_risk"`
	MinHealthRatio float64       `yaml:"min_health_ratio"`
}

// SignerConfig selects where signatures come from
type SignerConfig struct {
	Mode          string `yaml:"mode"`
	PrivateKeyEnv string `yaml:"private_key_env"`
	BridgeURL     string `yaml:"bridge_url"`
	Address       string `yaml:"address"`
	PublicKey     string `yaml:"public_key"`
}

// MetricsConfig exposes prometheus metrics when Listen is set
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the mainnet configuration
func Default() Config {
	return Config{
		Service:  "mpctl",
		Env:      "mainnet",
		LogLevel: "info",
		RiskAPI: RiskAPIConfig{
			URL:     constants.MainnetAPIURL,
			Timeout: constants.DefaultTimeout * time.Second,
		},
		Node: NodeConfig{
			URL:          constants.MainnetNodeURL,
			Timeout:      constants.DefaultTimeout * time.Second,
			ChainID:      constants.MainnetChainID,
			MaxGas:       constants.DefaultMaxGasAmount,
			Expiration:   constants.DefaultExpirationSecs * time.Second,
			PollInterval: 500 * time.Millisecond,
		},
		Portal: PortalConfig{
			Address: constants.PortalAddress,
			Module:  constants.PortalModule,
		},
		Pipeline: PipelineConfig{
			SigningTimeout: constants.SigningTimeout * time.Second,
		},
		Signer: SignerConfig{
			Mode:          SignerLocal,
			PrivateKeyEnv: EnvPrivateKey,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path uses the defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvRiskAPIURL)); v != "" {
		cfg.RiskAPI.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNodeURL)); v != "" {
		cfg.Node.URL = v
	}
}

func (cfg *Config) normalize() {
	def := Default()

	cfg.Service = strings.TrimSpace(cfg.Service)
	if cfg.Service == "" {
		cfg.Service = def.Service
	}
	cfg.Env = strings.TrimSpace(cfg.Env)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	cfg.RiskAPI.URL = strings.TrimRight(strings.TrimSpace(cfg.RiskAPI.URL), "/")
	if cfg.RiskAPI.Timeout <= 0 {
		cfg.RiskAPI.Timeout = def.RiskAPI.Timeout
	}

	cfg.Node.URL = strings.TrimRight(strings.TrimSpace(cfg.Node.URL), "/")
	if cfg.Node.Timeout <= 0 {
		cfg.Node.Timeout = def.Node.Timeout
	}
	if cfg.Node.MaxGas == 0 {
		cfg.Node.MaxGas = def.Node.MaxGas
	}
	if cfg.Node.Expiration <= 0 {
		cfg.Node.Expiration = def.Node.Expiration
	}
	if cfg.Node.PollInterval <= 0 {
		cfg.Node.PollInterval = def.Node.PollInterval
	}

	cfg.Portal.Address = strings.TrimSpace(cfg.Portal.Address)
	cfg.Portal.Module = strings.TrimSpace(cfg.Portal.Module)
	if cfg.Portal.Address == "" {
		cfg.Portal.Address = def.Portal.Address
	}
	if cfg.Portal.Module == "" {
		cfg.Portal.Module = def.Portal.Module
	}

	if cfg.Pipeline.SigningTimeout <= 0 {
		cfg.Pipeline.SigningTimeout = def.Pipeline.SigningTimeout
	}

	cfg.Signer.Mode = strings.ToLower(strings.TrimSpace(cfg.Signer.Mode))
	if cfg.Signer.Mode == "" {
		cfg.Signer.Mode = SignerLocal
	}
	cfg.Signer.PrivateKeyEnv = strings.TrimSpace(cfg.Signer.PrivateKeyEnv)
	if cfg.Signer.PrivateKeyEnv == "" {
		cfg.Signer.PrivateKeyEnv = EnvPrivateKey
	}
	cfg.Signer.BridgeURL = strings.TrimSpace(cfg.Signer.BridgeURL)
	cfg.Signer.Address = strings.TrimSpace(cfg.Signer.Address)
	cfg.Signer.PublicKey = strings.TrimSpace(cfg.Signer.PublicKey)

	cfg.Metrics.Listen = strings.TrimSpace(cfg.Metrics.Listen)
}

func (cfg *Config) validate() error {
	if cfg.RiskAPI.URL == "" {
		return fmt.Errorf("risk_api.url is required")
	}
	if cfg.Node.URL == "" {
		return fmt.Errorf("node.url is required")
	}
	if cfg.Node.ChainID == 0 {
		return fmt.Errorf("node.chain_id is required")
	}
	if cfg.RiskAPI.RateLimit < 0 {
		return fmt.Errorf("risk_api.rate_limit must not be negative")
	}
	if cfg.Pipeline.MinHealthRatio < 0 {
		return fmt.Errorf("pipeline.min_health_ratio must not be negative")
	}
	if err := cfg.Signer.validate(); err != nil {
		return fmt.Errorf("signer: %w", err)
	}
	return nil
}

func (cfg SignerConfig) validate() error {
	switch cfg.Mode {
	case SignerLocal:
		return nil
	case SignerBridge:
		if cfg.BridgeURL == "" {
			return fmt.Errorf("bridge_url is required in bridge mode")
		}
		if cfg.Address == "" || cfg.PublicKey == "" {
			return fmt.Errorf("address and public_key are required in bridge mode")
		}
		return nil
	}
	return fmt.Errorf("unknown mode %q, want %s or %s", cfg.Mode, SignerLocal, SignerBridge)
}

// PrivateKey reads the local signing key from the configured environment variable
func (cfg SignerConfig) PrivateKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(cfg.PrivateKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%s is not set", cfg.PrivateKeyEnv)
	}
	return key, nil
}

// PipelineConfig converts the settings into an explicit pipeline configuration
func (cfg Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		ChainID:        cfg.Node.ChainID,
		SigningTimeout: cfg.Pipeline.SigningTimeout,
		PreviewRisk:    cfg.Pipeline.PreviewRisk,
		MinHealthRatio: cfg.Pipeline.MinHealthRatio,
	}
}
