// Package config loads the tablekeeper configuration from HCL files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete process configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	DB     DBSettings     `hcl:"database,block"`
	Engine EngineSettings `hcl:"engine,block"`
}

// ServerSettings contains listener-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// DBSettings selects the database driver and DSN.
type DBSettings struct {
	Driver string `hcl:"driver,optional"`
	DSN    string `hcl:"dsn,optional"`
}

// EngineSettings holds the timing knobs used by the buy-in, break,
// seat-change and dealer-choice workflows. They are injected into the
// engine at construction so tests can vary them per run.
type EngineSettings struct {
	BuyinTimeoutSec         int `hcl:"buyin_timeout_sec,optional"`
	BuyinApprovalTimeoutSec int `hcl:"buyin_approval_timeout_sec,optional"`
	SeatChangeTimeoutSec    int `hcl:"seat_change_timeout_sec,optional"`
	BreakLengthMin          int `hcl:"break_length_min,optional"`
	DealerChoiceTimeoutSec  int `hcl:"dealer_choice_timeout_sec,optional"`
}

// BuyinTimeout returns the buy-in clock duration.
func (e EngineSettings) BuyinTimeout() time.Duration {
	return time.Duration(e.BuyinTimeoutSec) * time.Second
}

// BuyinApprovalTimeout returns the host-approval clock duration.
func (e EngineSettings) BuyinApprovalTimeout() time.Duration {
	return time.Duration(e.BuyinApprovalTimeoutSec) * time.Second
}

// SeatChangeTimeout returns the seat-offer prompt duration.
func (e EngineSettings) SeatChangeTimeout() time.Duration {
	return time.Duration(e.SeatChangeTimeoutSec) * time.Second
}

// BreakLength returns the seat-break duration.
func (e EngineSettings) BreakLength() time.Duration {
	return time.Duration(e.BreakLengthMin) * time.Minute
}

// DealerChoiceTimeout returns the dealer-choice prompt duration.
func (e EngineSettings) DealerChoiceTimeout() time.Duration {
	return time.Duration(e.DealerChoiceTimeoutSec) * time.Second
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     9501,
			LogLevel: "info",
		},
		DB: DBSettings{
			Driver: "postgres",
			DSN:    "host=localhost user=tablekeeper dbname=tablekeeper sslmode=disable",
		},
		Engine: EngineSettings{
			BuyinTimeoutSec:         60,
			BuyinApprovalTimeoutSec: 120,
			SeatChangeTimeoutSec:    10,
			BreakLengthMin:          5,
			DealerChoiceTimeoutSec:  10,
		},
	}
}

// Load parses an HCL configuration file, applying defaults for any
// field the file leaves unset.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", filename)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing config file: %s", diags.Error())
	}

	config := Default()
	diags = gohcl.DecodeBody(file.Body, nil, config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decoding config file: %s", diags.Error())
	}
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	defaults := Default()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.DB.Driver == "" {
		config.DB.Driver = defaults.DB.Driver
	}
	if config.DB.DSN == "" {
		config.DB.DSN = defaults.DB.DSN
	}
	if config.Engine.BuyinTimeoutSec == 0 {
		config.Engine.BuyinTimeoutSec = defaults.Engine.BuyinTimeoutSec
	}
	if config.Engine.BuyinApprovalTimeoutSec == 0 {
		config.Engine.BuyinApprovalTimeoutSec = defaults.Engine.BuyinApprovalTimeoutSec
	}
	if config.Engine.SeatChangeTimeoutSec == 0 {
		config.Engine.SeatChangeTimeoutSec = defaults.Engine.SeatChangeTimeoutSec
	}
	if config.Engine.BreakLengthMin == 0 {
		config.Engine.BreakLengthMin = defaults.Engine.BreakLengthMin
	}
	if config.Engine.DealerChoiceTimeoutSec == 0 {
		config.Engine.DealerChoiceTimeoutSec = defaults.Engine.DealerChoiceTimeoutSec
	}
}
