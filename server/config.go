// Package server wires the core's components into a runnable process:
// HCL configuration, a WebSocket transport, and the top-level Server that
// owns the Matchmaker and every live TableInstance. Grounded on the
// teacher's internal/server/{config,connection,server}.go.
package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/plo-core/internal/bot"
	"github.com/lox/plo-core/internal/game"
)

// Config is the complete process configuration, loaded from an HCL file
// following the teacher's ServerConfig/TableConfig/BotConfig block shape.
type Config struct {
	Server   Settings           `hcl:"server,block"`
	Tables   []StakesConfig     `hcl:"stakes,block"`
	Bots     []BotPersonalityConfig `hcl:"bot,block"`
}

// Settings contains process-level configuration.
type Settings struct {
	Address        string `hcl:"address,optional"`
	Port           int    `hcl:"port,optional"`
	LogLevel       string `hcl:"log_level,optional"`
	Seed           int64  `hcl:"seed,optional"`
	HandLimit      uint64 `hcl:"hand_limit,optional"` // 0 = unlimited, spec §D maintenance mode
	IdleTableAfter string `hcl:"idle_table_after,optional"`
}

// StakesConfig is one bootstrapped matchmaking bucket: a blinds level the
// server pre-seeds so the lobby has somewhere to route an initial join,
// mirroring the teacher's per-table blind/buy-in block.
type StakesConfig struct {
	Name           string  `hcl:"name,label"`
	SmallBlind     int     `hcl:"small_blind"`
	BigBlind       int     `hcl:"big_blind"`
	BuyIn          int     `hcl:"buy_in,optional"`
	FastFold       bool    `hcl:"fast_fold,optional"`
	ActionTimeoutMs int    `hcl:"action_timeout_ms,optional"`
	RakePercent    float64 `hcl:"rake_percent,optional"`
	RakeCap        int     `hcl:"rake_cap,optional"`
}

// BotPersonalityConfig maps a named personality onto internal/bot's
// threshold knobs, per spec §4.7's "tagged variants or a registry keyed by
// a BotPersonalityId" re-architecture note — a config-driven registry
// instead of the teacher's runtime strategy-name lookup.
type BotPersonalityConfig struct {
	Name             string  `hcl:"name,label"`
	RaiseThreshold   float64 `hcl:"raise_threshold,optional"`
	FoldThreshold    float64 `hcl:"fold_threshold,optional"`
	BluffFrequency   float64 `hcl:"bluff_frequency,optional"`
	AggressionFactor float64 `hcl:"aggression_factor,optional"`
}

// ToPersonality converts a configured entry into the bot package's value
// type, filling unset numeric fields from bot.DefaultPersonality.
func (c BotPersonalityConfig) ToPersonality() bot.Personality {
	p := bot.DefaultPersonality
	if c.RaiseThreshold != 0 {
		p.RaiseThreshold = c.RaiseThreshold
	}
	if c.FoldThreshold != 0 {
		p.FoldThreshold = c.FoldThreshold
	}
	if c.BluffFrequency != 0 {
		p.BluffFrequency = c.BluffFrequency
	}
	if c.AggressionFactor != 0 {
		p.AggressionFactor = c.AggressionFactor
	}
	return p
}

// DefaultConfig returns sane defaults for running without a config file.
func DefaultConfig() *Config {
	return &Config{
		Server: Settings{
			Address:        "localhost",
			Port:           8080,
			LogLevel:       "info",
			IdleTableAfter: "10m",
		},
		Tables: []StakesConfig{
			{
				Name:            "main",
				SmallBlind:      1,
				BigBlind:        2,
				BuyIn:           200,
				ActionTimeoutMs: 15000,
				RakePercent:     0.05,
				RakeCap:         3,
			},
		},
		Bots: []BotPersonalityConfig{
			{Name: "balanced"},
		},
	}
}

// LoadConfig loads HCL configuration from filename, following the
// teacher's LoadServerConfig contract: a missing file yields defaults
// rather than an error.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.IdleTableAfter == "" {
		c.Server.IdleTableAfter = "10m"
	}
	for i := range c.Tables {
		if c.Tables[i].BuyIn == 0 {
			c.Tables[i].BuyIn = c.Tables[i].BigBlind * 100
		}
		if c.Tables[i].ActionTimeoutMs == 0 {
			c.Tables[i].ActionTimeoutMs = 15000
		}
		if c.Tables[i].RakeCap == 0 {
			c.Tables[i].RakeCap = c.Tables[i].BigBlind
		}
	}
}

// Validate checks the configuration for obviously broken values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one stakes level must be configured")
	}
	for _, s := range c.Tables {
		if s.SmallBlind <= 0 {
			return fmt.Errorf("stakes %s: small blind must be positive", s.Name)
		}
		if s.BigBlind <= s.SmallBlind {
			return fmt.Errorf("stakes %s: big blind must exceed small blind", s.Name)
		}
	}
	if _, err := time.ParseDuration(c.Server.IdleTableAfter); err != nil {
		return fmt.Errorf("invalid idle_table_after: %w", err)
	}
	return nil
}

// IdleTableAfterDuration parses Server.IdleTableAfter, falling back to 10
// minutes if unset or malformed (Validate should already have caught the
// latter).
func (c *Config) IdleTableAfterDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.IdleTableAfter)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// RakeConfig converts a StakesConfig's rake fields into the engine's type.
func (s StakesConfig) RakeConfig() game.RakeConfig {
	return game.RakeConfig{Percent: s.RakePercent, Cap: s.RakeCap}
}

// ActionTimeout converts ActionTimeoutMs into a time.Duration.
func (s StakesConfig) ActionTimeout() time.Duration {
	return time.Duration(s.ActionTimeoutMs) * time.Millisecond
}
