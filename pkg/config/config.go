package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WalletConfig selects the wallet backend and its key material. Exactly one
// of PrivateKey or Mnemonic is set; Mnemonic implies the custodial backend.
type WalletConfig struct {
	Backend        string `yaml:"backend"` // custodial | extension | relay | mobile
	PrivateKey     string `yaml:"private_key"`
	Mnemonic       string `yaml:"mnemonic"`
	DerivationPath string `yaml:"derivation_path"`
}

// EndpointsConfig points at the exchange and its side services.
type EndpointsConfig struct {
	ClobHost      string `yaml:"clob_host"`
	DataHost      string `yaml:"data_host"`
	RelayHost     string `yaml:"relay_host"`
	CompanionHost string `yaml:"companion_host"`
	RPCURL        string `yaml:"rpc_url"`
	StreamURL     string `yaml:"stream_url"`
}

// FeesConfig controls platform fee collection.
type FeesConfig struct {
	Percentage float64 `yaml:"percentage"` // e.g. 2.0 for 2%
	Treasury   string  `yaml:"treasury"`   // fee destination address
	LedgerPath string  `yaml:"ledger_path"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Dir        string `yaml:"dir"`
	UseBadger  bool   `yaml:"use_badger"`
	BadgerPath string `yaml:"badger_path"`
}

// LogConfig mirrors pkg/logger.Config.
type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// RefreshConfig sets the background refresh cadence.
type RefreshConfig struct {
	Book      time.Duration `yaml:"book"`
	Positions time.Duration `yaml:"positions"`
	FeeConfig time.Duration `yaml:"fee_config"`
}

// Config is the root configuration.
type Config struct {
	ChainID   int             `yaml:"chain_id"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Fees      FeesConfig      `yaml:"fees"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

// Load reads a YAML config file, applies env overrides and defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("TRADER_PRIVATE_KEY")); v != "" {
		c.Wallet.PrivateKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TRADER_MNEMONIC")); v != "" {
		c.Wallet.Mnemonic = v
	}
	if v := strings.TrimSpace(os.Getenv("TRADER_RPC_URL")); v != "" {
		c.Endpoints.RPCURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.ChainID == 0 {
		c.ChainID = 137
	}
	if c.Wallet.Backend == "" {
		c.Wallet.Backend = "custodial"
	}
	if c.Wallet.DerivationPath == "" {
		c.Wallet.DerivationPath = "m/44'/60'/0'/0/0"
	}
	if c.Endpoints.ClobHost == "" {
		c.Endpoints.ClobHost = "https://clob.polymarket.com"
	}
	if c.Endpoints.DataHost == "" {
		c.Endpoints.DataHost = "https://data-api.polymarket.com"
	}
	if c.Endpoints.RelayHost == "" {
		c.Endpoints.RelayHost = "https://relayer-v2.polymarket.com"
	}
	if c.Endpoints.StreamURL == "" {
		c.Endpoints.StreamURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if c.Fees.Percentage == 0 {
		c.Fees.Percentage = 2.0
	}
	if c.Fees.LedgerPath == "" {
		c.Fees.LedgerPath = "data/fees.db"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "data/sessions"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Refresh.Book == 0 {
		c.Refresh.Book = 5 * time.Second
	}
	if c.Refresh.Positions == 0 {
		c.Refresh.Positions = 30 * time.Second
	}
	if c.Refresh.FeeConfig == 0 {
		c.Refresh.FeeConfig = 30 * time.Second
	}
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	switch c.Wallet.Backend {
	case "custodial", "extension", "relay", "mobile":
	default:
		return fmt.Errorf("config: unknown wallet backend %q", c.Wallet.Backend)
	}
	if c.Wallet.Backend == "custodial" && c.Wallet.PrivateKey == "" && c.Wallet.Mnemonic == "" {
		return fmt.Errorf("config: custodial backend needs private_key or mnemonic")
	}
	if c.Endpoints.RPCURL == "" {
		return fmt.Errorf("config: rpc_url is required")
	}
	return nil
}
