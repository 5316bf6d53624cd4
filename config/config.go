// Package config loads the guardian configuration from YAML or JSON
// files with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/usermihir/Agentic-EV/core/metrics"
	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/planner"
	"github.com/usermihir/Agentic-EV/core/reservation"
	"github.com/usermihir/Agentic-EV/core/trust"
	"github.com/usermihir/Agentic-EV/infra/mqtt"
	"github.com/usermihir/Agentic-EV/infra/partner"
)

// StationSeed declares one station and its connectors for the
// in-memory repository at startup.
type StationSeed struct {
	model.Station
	Connectors []model.Connector `json:"connectors"`
}

// APIConfig holds the HTTP server parameters.
type APIConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

// SetDefaults fills zero values.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// AuditConfig locates the intervention trail database.
type AuditConfig struct {
	Path string `json:"path"`
}

// SetDefaults fills zero values.
func (c *AuditConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "guardian_audit.db"
	}
}

// Config is the root configuration document.
type Config struct {
	MQTT        mqtt.Config        `json:"mqtt"`
	Metrics     metrics.Config     `json:"metrics"`
	Trust       trust.Config       `json:"trust"`
	Planner     planner.Config     `json:"planner"`
	Reservation reservation.Config `json:"reservation"`
	Partner     partner.Config     `json:"partner"`
	Audit       AuditConfig        `json:"audit"`
	API         APIConfig          `json:"api"`
	Stations    []StationSeed      `json:"stations"`
}

// Load reads and validates the configuration file. Environment
// variables prefixed with GUARDIAN_ override file values, with __
// separating nesting levels.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("GUARDIAN_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "guardian_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Trust.SetDefaults()
	cfg.Planner.SetDefaults()
	cfg.Reservation.SetDefaults()
	cfg.Partner.SetDefaults()
	cfg.Audit.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Trust.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Planner.Validate(); err != nil {
		return nil, err
	}
	for _, st := range cfg.Stations {
		if st.ID == "" {
			return nil, fmt.Errorf("station seed without id")
		}
		for _, c := range st.Connectors {
			if err := c.Validate(); err != nil {
				return nil, fmt.Errorf("station %s: %w", st.ID, err)
			}
		}
	}
	return &cfg, nil
}
