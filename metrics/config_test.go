package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/metrics"
)

func TestConfigAddress(t *testing.T) {
	cfg := metrics.DefaultBridgeConfig()
	addr, err := cfg.Address()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:2112", addr)

	cfg.Host = "::1"
	addr, err = cfg.Address()
	require.NoError(t, err)
	require.Equal(t, "[::1]:2112", addr)

	cfg.Host = "localhost"
	_, err = cfg.Address()
	require.Error(t, err)

	cfg = metrics.DefaultBridgeConfig()
	cfg.UpdateInterval = 0
	require.Error(t, cfg.Validate())

	cfg = metrics.DefaultBridgeConfig()
	cfg.Port = 70000
	require.Error(t, cfg.Validate())
}
