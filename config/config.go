package config

import (
	"errors"
	"time"
)

type Configuration struct {
	// Server config
	Server struct {
		Listen     string  `yaml:"listen" envconfig:"LISTEN"`
		RedisPort  int     `yaml:"redis_port" envconfig:"REDIS_PORT"`
		RedisHost  string  `yaml:"redis_host" envconfig:"REDIS_HOST"` // empty disables the mirror
		WriteRPS   float64 `yaml:"write_rps" envconfig:"WRITE_RPS"`
		WriteBurst int     `yaml:"write_burst" envconfig:"WRITE_BURST"`
	} `yaml:"server"`
	// EVM-related config
	EVM struct {
		ChainID       int64    `yaml:"chain_id" envconfig:"CHAIN_ID"`
		RPCList       []string `yaml:"rpc_list" envconfig:"RPC_LIST"`
		EscrowAddress string   `yaml:"escrow_address" envconfig:"ESCROW_ADDRESS"`
		// important private stuff, optional: without it only reads are served
		PrivateKey string `yaml:"private_key" envconfig:"PRIVATE_KEY"`
		// account whose balances are polled when no signer is configured
		Account string `yaml:"account" envconfig:"ACCOUNT"`
		// 0 lets the node estimate
		GasLimit uint64 `yaml:"gas_limit" envconfig:"GAS_LIMIT"`
	} `yaml:"EVM"`
	Polling struct {
		Interval time.Duration `yaml:"interval" envconfig:"POLL_INTERVAL"`
		AuditCap int           `yaml:"audit_cap" envconfig:"AUDIT_CAP"`
	} `yaml:"polling"`
	Log struct {
		Level string `yaml:"level" envconfig:"LOG_LEVEL"`
		Dir   string `yaml:"dir" envconfig:"LOG_DIR"`
	} `yaml:"log"`
}

var Config Configuration

// env vars are looked up as SCROW_<NAME>
const EnvPrefix = "SCROW"

const (
	DefaultPollInterval = 8 * time.Second
	DefaultAuditCap     = 200
	// minimum operation duration the escrow contract accepts
	MinOperationDuration = 3600
	// decimals assumed for escrow balances when the token does not answer
	FallbackDecimals = 18
)

func (c *Configuration) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.RedisPort == 0 {
		c.Server.RedisPort = 6379
	}
	if c.Server.WriteRPS == 0 {
		c.Server.WriteRPS = 1
	}
	if c.Server.WriteBurst == 0 {
		c.Server.WriteBurst = 3
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = DefaultPollInterval
	}
	if c.Polling.AuditCap == 0 {
		c.Polling.AuditCap = DefaultAuditCap
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Configuration) Validate() error {
	if len(c.EVM.RPCList) == 0 {
		return errors.New("EVM.rpc_list must contain at least one endpoint")
	}
	if c.EVM.EscrowAddress == "" {
		return errors.New("EVM.escrow_address is required")
	}
	if c.EVM.ChainID <= 0 {
		return errors.New("EVM.chain_id must be positive")
	}
	if c.Polling.Interval < time.Second {
		return errors.New("polling.interval must be at least 1s")
	}
	if c.Polling.AuditCap < 1 {
		return errors.New("polling.audit_cap must be positive")
	}
	return nil
}
