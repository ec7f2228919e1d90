package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
server:
  port: 9090
ledger:
  operator_address: "0x00000000000000000000000000000000000000a1"
  treasury_address: "0x00000000000000000000000000000000000000f1"
platform:
  fee_receiver: "0x00000000000000000000000000000000000000a3"
database:
  host: localhost
  user: usiko
  password: secret
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0x00000000000000000000000000000000000000a1", cfg.Ledger.OperatorAddress)

	// Defaults fill everything the file omits.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(250), cfg.Platform.FeeBps)
	assert.Equal(t, "5000000000", cfg.Ledger.CollectionFunding)
	assert.Equal(t, "USKO", cfg.Token.Symbol)
	assert.True(t, cfg.Indexer.Enabled)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing operator",
			content: `
ledger:
  treasury_address: "0x00000000000000000000000000000000000000f1"
platform:
  fee_receiver: "0x00000000000000000000000000000000000000a3"
database:
  host: localhost
`,
			wantErr: "ledger.operator_address",
		},
		{
			name: "missing fee receiver",
			content: `
ledger:
  operator_address: "0x00000000000000000000000000000000000000a1"
  treasury_address: "0x00000000000000000000000000000000000000f1"
database:
  host: localhost
`,
			wantErr: "platform.fee_receiver",
		},
		{
			name: "fee over denominator",
			content: `
ledger:
  operator_address: "0x00000000000000000000000000000000000000a1"
  treasury_address: "0x00000000000000000000000000000000000000f1"
platform:
  fee_receiver: "0x00000000000000000000000000000000000000a3"
  fee_bps: 10001
database:
  host: localhost
`,
			wantErr: "fee_bps",
		},
		{
			name: "indexer without database",
			content: `
ledger:
  operator_address: "0x00000000000000000000000000000000000000a1"
  treasury_address: "0x00000000000000000000000000000000000000f1"
platform:
  fee_receiver: "0x00000000000000000000000000000000000000a3"
`,
			wantErr: "database.host",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestGetConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p",
		Database: "usiko_index", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=usiko_index sslmode=disable",
		cfg.GetConnectionString())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "not-a-level"})
	require.Error(t, err)
}
