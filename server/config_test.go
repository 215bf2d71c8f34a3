package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10*time.Minute, cfg.IdleTableAfterDuration())
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.hcl"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigParsesHCL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.hcl")
	contents := `
server {
  address    = "0.0.0.0"
  port       = 9000
  log_level  = "debug"
  hand_limit = 500
}

stakes "main" {
  small_blind = 1
  big_blind   = 2
  buy_in      = 200
}

stakes "high" {
  small_blind = 5
  big_blind   = 10
}

bot "balanced" {
  raise_threshold = 0.6
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "0.0.0.0", cfg.Server.Address)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, uint64(500), cfg.Server.HandLimit)
	require.Len(t, cfg.Tables, 2)
	require.Equal(t, "main", cfg.Tables[0].Name)
	require.Equal(t, 200, cfg.Tables[0].BuyIn)
	// high stakes didn't set buy_in, so applyDefaults fills it from the blind.
	require.Equal(t, cfg.Tables[1].BigBlind*100, cfg.Tables[1].BuyIn)

	require.Len(t, cfg.Bots, 1)
	p := cfg.Bots[0].ToPersonality()
	require.Equal(t, 0.6, p.RaiseThreshold)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedBlinds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tables[0].BigBlind = cfg.Tables[0].SmallBlind
	require.Error(t, cfg.Validate())
}

func TestStakesForFallsBackWhenNoExactMatch(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.stakesFor(999, 1999)
	require.Equal(t, cfg.Tables[0].Name, s.Name)
}

func TestStakesForExactMatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tables = append(cfg.Tables, StakesConfig{Name: "high", SmallBlind: 5, BigBlind: 10, BuyIn: 1000})
	cfg.applyDefaults()

	s := cfg.stakesFor(5, 10)
	require.Equal(t, "high", s.Name)
}
