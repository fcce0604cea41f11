package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auv-monitor/ingestion/internal/domain"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: RULE-SEDIMENT-01
    type: threshold
    path: env.sediment_mg_l
    operator: ">"
    value: 25
    severity: high
    dedupe_window_sec: 300
    active: true
  - id: RULE-ZONE-01
    type: zone_dwell
    severity: medium
    dedupe_window_sec: 1800
    zone_type: sensitive
    max_minutes: 60
    active: true
`), 0o644))

	defs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "RULE-SEDIMENT-01", defs[0].ID)
	assert.Equal(t, domain.RuleThreshold, defs[0].Type)
	assert.Equal(t, domain.OperatorGreater, defs[0].Operator)
	assert.Equal(t, 25.0, defs[0].Value)

	assert.Equal(t, domain.RuleZoneDwell, defs[1].Type)
	assert.Equal(t, "sensitive", defs[1].ZoneType)
	assert.Equal(t, 60, defs[1].MaxMinutes)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: {not a list"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
