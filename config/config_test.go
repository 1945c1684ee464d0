package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  listen: ":9000"
  redis_host: "127.0.0.1"
EVM:
  chain_id: 56
  rpc_list:
    - "https://rpc-a.example"
    - "https://rpc-b.example"
  escrow_address: "0x00000000000000000000000000000000000000e5"
polling:
  interval: 15s
log:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDecode(t *testing.T) {
	var cfg Configuration
	require.NoError(t, decode(strings.NewReader(sample), &cfg))

	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, int64(56), cfg.EVM.ChainID)
	assert.Equal(t, []string{"https://rpc-a.example", "https://rpc-b.example"}, cfg.EVM.RPCList)
	assert.Equal(t, 15*time.Second, cfg.Polling.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.NoError(t, decode(strings.NewReader(""), &cfg))
	assert.Error(t, decode(strings.NewReader("server: [oops"), &cfg))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 6379, cfg.Server.RedisPort)
	assert.Equal(t, float64(1), cfg.Server.WriteRPS)
	assert.Equal(t, 3, cfg.Server.WriteBurst)
	assert.Equal(t, DefaultAuditCap, cfg.Polling.AuditCap)
	assert.Equal(t, uint64(0), cfg.EVM.GasLimit)
	assert.Empty(t, cfg.EVM.PrivateKey)
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("SCROW_EVM_CHAIN_ID", "97")
	t.Setenv("SCROW_EVM_RPC_LIST", "https://one.example,https://two.example,https://three.example")
	t.Setenv("SCROW_POLLING_POLL_INTERVAL", "30s")
	t.Setenv("SCROW_SERVER_LISTEN", ":7000")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, int64(97), cfg.EVM.ChainID)
	assert.Len(t, cfg.EVM.RPCList, 3)
	assert.Equal(t, 30*time.Second, cfg.Polling.Interval)
	assert.Equal(t, ":7000", cfg.Server.Listen)
	// untouched by the environment
	assert.Equal(t, "127.0.0.1", cfg.Server.RedisHost)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Configuration {
		var cfg Configuration
		require.NoError(t, decode(strings.NewReader(sample), &cfg))
		cfg.applyDefaults()
		return cfg
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(c *Configuration)
		want   string
	}{
		{"no endpoints", func(c *Configuration) { c.EVM.RPCList = nil }, "rpc_list"},
		{"no escrow", func(c *Configuration) { c.EVM.EscrowAddress = "" }, "escrow_address"},
		{"chain id", func(c *Configuration) { c.EVM.ChainID = 0 }, "chain_id"},
		{"fast polling", func(c *Configuration) { c.Polling.Interval = 100 * time.Millisecond }, "interval"},
		{"audit cap", func(c *Configuration) { c.Polling.AuditCap = -1 }, "audit_cap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
