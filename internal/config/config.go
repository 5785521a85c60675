// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"survivor-go/internal/strategy"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	Console     bool   `yaml:"console"`
}

// Broker selects the venue the engine quotes and trades against.
type Broker struct {
	Provider        string `yaml:"provider"` // paper|bridge
	BaseURL         string `yaml:"base_url"`
	CallTimeoutMs   int    `yaml:"call_timeout_ms"`
	InstrumentsPath string `yaml:"instruments_path"`
	EnvFile         string `yaml:"env_file"`
}

// CallTimeout converts the configured per-call timeout.
func (b Broker) CallTimeout() time.Duration {
	return time.Duration(b.CallTimeoutMs) * time.Millisecond
}

// Feed configures the underlying tick stream.
type Feed struct {
	Provider         string    `yaml:"provider"` // stub|websocket
	URL              string    `yaml:"url"`
	SubscribeMessage string    `yaml:"subscribe_message"`
	Buffer           int       `yaml:"buffer"`
	IntervalMs       int       `yaml:"interval_ms"`
	MaxReconnectMs   int       `yaml:"max_reconnect_ms"`
	Script           []float64 `yaml:"script"`
	WalkStart        float64   `yaml:"walk_start"`
	WalkStep         float64   `yaml:"walk_step"`
	Seed             uint64    `yaml:"seed"`
}

// Chain describes the synthetic option chain served in paper mode when no instruments file is given.
type Chain struct {
	Center  float64 `yaml:"center"`
	Spacing float64 `yaml:"spacing"`
	Strikes int     `yaml:"strikes"`
	LotSize int     `yaml:"lot_size"`
}

// Paper captures paper-trading settings: position caps, premium model, and fill recording.
type Paper struct {
	MaxQtyPerSymbol int     `yaml:"max_qty_per_symbol"`
	FillsPath       string  `yaml:"fills_path"`
	TimeValue       float64 `yaml:"time_value"`
	Decay           float64 `yaml:"decay"`
	Chain           Chain   `yaml:"chain"`
}

// Risk encodes guard-rails on how fast orders may leave.
type Risk struct {
	OrderRatePerSec float64 `yaml:"order_rate_per_sec"`
}

// SurvivorParams mirrors the flat knob set of one strategy instance.
type SurvivorParams struct {
	SymbolInitials          string  `yaml:"symbol_initials"`
	IndexSymbol             string  `yaml:"index_symbol"`
	Exchange                string  `yaml:"exchange"`
	Tag                     string  `yaml:"tag"`
	PEGap                   float64 `yaml:"pe_gap"`
	CEGap                   float64 `yaml:"ce_gap"`
	PESymbolGap             float64 `yaml:"pe_symbol_gap"`
	CESymbolGap             float64 `yaml:"ce_symbol_gap"`
	PEResetGap              float64 `yaml:"pe_reset_gap"`
	CEResetGap              float64 `yaml:"ce_reset_gap"`
	PEQuantity              int     `yaml:"pe_quantity"`
	CEQuantity              int     `yaml:"ce_quantity"`
	PEStartPoint            float64 `yaml:"pe_start_point"`
	CEStartPoint            float64 `yaml:"ce_start_point"`
	MinPriceToSell          float64 `yaml:"min_price_to_sell"`
	SellMultiplierThreshold int     `yaml:"sell_multiplier_threshold"`
}

// Params converts the YAML knobs into the strategy's immutable parameter struct.
func (p SurvivorParams) Params() strategy.Params {
	return strategy.Params{
		SymbolInitials: p.SymbolInitials,
		IndexSymbol:    p.IndexSymbol,
		Exchange:       p.Exchange,
		Tag:            p.Tag,
		Put: strategy.SideParams{
			Gap: p.PEGap, SymbolGap: p.PESymbolGap, ResetGap: p.PEResetGap,
			Quantity: p.PEQuantity, StartPoint: p.PEStartPoint,
		},
		Call: strategy.SideParams{
			Gap: p.CEGap, SymbolGap: p.CESymbolGap, ResetGap: p.CEResetGap,
			Quantity: p.CEQuantity, StartPoint: p.CEStartPoint,
		},
		MinPriceToSell:          p.MinPriceToSell,
		SellMultiplierThreshold: p.SellMultiplierThreshold,
	}
}

// Instance is one isolated strategy run, typically one expiry series.
type Instance struct {
	Name           string `yaml:"name"`
	Strategy       string `yaml:"strategy,omitempty"`
	Disabled       bool   `yaml:"disabled,omitempty"`
	SurvivorParams `yaml:",inline"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App        `yaml:"app"`
	Broker    Broker     `yaml:"broker"`
	Feed      Feed       `yaml:"feed"`
	Paper     Paper      `yaml:"paper"`
	Risk      Risk       `yaml:"risk"`
	Instances []Instance `yaml:"instances"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Active returns the instances that are not disabled.
func (c *Config) Active() []Instance {
	out := make([]Instance, 0, len(c.Instances))
	for _, inst := range c.Instances {
		if !inst.Disabled {
			out = append(out, inst)
		}
	}
	return out
}

// Validate checks provider choices and every active instance's strategy parameters.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Broker.Provider) {
	case "paper", "":
	case "bridge":
		if strings.TrimSpace(c.Broker.BaseURL) == "" {
			errs = append(errs, errors.New("broker.base_url is required for the bridge provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown broker.provider %q", c.Broker.Provider))
	}
	switch strings.ToLower(c.Feed.Provider) {
	case "stub", "":
	case "websocket":
		if strings.TrimSpace(c.Feed.URL) == "" {
			errs = append(errs, errors.New("feed.url is required for the websocket provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown feed.provider %q", c.Feed.Provider))
	}
	if c.Broker.CallTimeoutMs < 0 {
		errs = append(errs, errors.New("broker.call_timeout_ms must be >= 0"))
	}

	active := c.Active()
	if len(active) == 0 {
		errs = append(errs, errors.New("at least one enabled instance is required"))
	}
	seen := make(map[string]struct{}, len(active))
	for i, inst := range active {
		label := inst.Name
		if label == "" {
			label = fmt.Sprintf("instances[%d]", i)
		}
		if _, dup := seen[label]; dup {
			errs = append(errs, fmt.Errorf("duplicate instance name %q", label))
		}
		seen[label] = struct{}{}
		if !strategy.Supported(inst.Strategy) {
			errs = append(errs, fmt.Errorf("%s: unknown strategy %q", label, inst.Strategy))
		}
		if err := inst.Params().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
	}
	return errors.Join(errs...)
}
