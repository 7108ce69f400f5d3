package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("WALLET_SYNC_CONCURRENCY", "3")
	t.Setenv("WALLET_PROVIDER_URL", "https://auth.example.com/api/v1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.HTTP.Port)
	require.Equal(t, 3, cfg.Workers.MaxConcurrentSyncs)
	require.Equal(t, "https://auth.example.com/api/v1", cfg.Authority.APIURL)
	require.Equal(t, "0x1234567890123456789012345678901234567890", cfg.Contract.Address)
	require.Equal(t, int32(10), cfg.DB.PoolMax)
}
