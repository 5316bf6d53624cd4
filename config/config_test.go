package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  addr: ":9090"
  token: secret
planner:
  min_badge: B
  color_bands: "5,20"
trust:
  a_min: 0.96
  b_min: 0.86
  c_min: 0.72
stations:
  - station_id: ST001
    name: Airport
    emergency_buffer: 1
    connectors:
      - connector_id: ST001-1
        station_id: ST001
        type: DC
        kw: 150
        status: available
        start_success_rate: 0.98
        soft_fault_rate: 0.02
        mttr_h: 1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.API.Addr)
	require.Equal(t, "secret", cfg.API.Token)
	require.Equal(t, "B", cfg.Planner.MinBadge)
	require.Equal(t, "5,20", cfg.Planner.ColorBands)
	require.Equal(t, 0.96, cfg.Trust.AMin)
	require.Len(t, cfg.Stations, 1)
	require.Len(t, cfg.Stations[0].Connectors, 1)
	require.Equal(t, "ST001-1", cfg.Stations[0].Connectors[0].ID)

	// Untouched sections carry their defaults.
	require.Equal(t, float64(15), cfg.Reservation.MinHoldMinutes)
	require.Equal(t, "guardian_audit.db", cfg.Audit.Path)
	require.Equal(t, 2112, cfg.Metrics.PrometheusPort)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	path := writeConfig(t, "config.json", `{"trust":{"a_min":0.5,"b_min":0.8,"c_min":0.7}}`)
	_, err := Load(path)
	require.Error(t, err)

	path = writeConfig(t, "config.yaml", `
stations:
  - name: missing-id
`)
	_, err = Load(path)
	require.Error(t, err)

	_, err = Load(writeConfig(t, "config.toml", ""))
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  addr: ":8080"
`)
	t.Setenv("GUARDIAN_API__ADDR", ":7070")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.API.Addr)
}
