package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"survivor-go/internal/config"
)

func addOverrideFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("instance", "", "Restrict overrides (and run) to the named instance")
	f.String("broker", "", "Override broker.provider (paper|bridge)")
	f.String("feed", "", "Override feed.provider (stub|websocket)")
	f.String("symbol-initials", "", "Option series prefix, e.g. NIFTY25807")
	f.String("index-symbol", "", "Underlying index symbol, e.g. 'NSE:NIFTY 50'")
	f.String("exchange", "", "Options exchange, e.g. NFO")
	f.String("tag", "", "Order tag")
	f.Float64("pe-gap", 0, "Index rally that triggers a put sale")
	f.Float64("ce-gap", 0, "Index fall that triggers a call sale")
	f.Float64("pe-symbol-gap", 0, "Distance below the index of the put strike")
	f.Float64("ce-symbol-gap", 0, "Distance above the index of the call strike")
	f.Float64("pe-reset-gap", 0, "Retrace that re-anchors an armed put side")
	f.Float64("ce-reset-gap", 0, "Retrace that re-anchors an armed call side")
	f.Int("pe-quantity", 0, "Base put quantity per multiplier unit")
	f.Int("ce-quantity", 0, "Base call quantity per multiplier unit")
	f.Float64("pe-start-point", 0, "Initial put anchor (0 = first tick)")
	f.Float64("ce-start-point", 0, "Initial call anchor (0 = first tick)")
	f.Float64("min-price-to-sell", 0, "Premium floor")
	f.Int("sell-multiplier-threshold", 0, "Largest multiplier a single trigger may carry")
}

// applyOverrides copies every explicitly set flag into cfg.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("broker") {
		cfg.Broker.Provider, _ = f.GetString("broker")
	}
	if f.Changed("feed") {
		cfg.Feed.Provider, _ = f.GetString("feed")
	}
	if lvl, _ := f.GetString("log-level"); lvl != "" {
		cfg.App.LogLevel = lvl
	}

	only, _ := f.GetString("instance")
	matched := only == ""
	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		if only != "" {
			if inst.Name != only {
				inst.Disabled = true
				continue
			}
			inst.Disabled = false
			matched = true
		}
		overrideParams(cmd, &inst.SurvivorParams)
	}
	if !matched {
		return fmt.Errorf("no instance named %q", only)
	}
	return nil
}

func overrideParams(cmd *cobra.Command, p *config.SurvivorParams) {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	num := func(name string, dst *float64) {
		if f.Changed(name) {
			*dst, _ = f.GetFloat64(name)
		}
	}
	integer := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	str("symbol-initials", &p.SymbolInitials)
	str("index-symbol", &p.IndexSymbol)
	str("exchange", &p.Exchange)
	str("tag", &p.Tag)
	num("pe-gap", &p.PEGap)
	num("ce-gap", &p.CEGap)
	num("pe-symbol-gap", &p.PESymbolGap)
	num("ce-symbol-gap", &p.CESymbolGap)
	num("pe-reset-gap", &p.PEResetGap)
	num("ce-reset-gap", &p.CEResetGap)
	integer("pe-quantity", &p.PEQuantity)
	integer("ce-quantity", &p.CEQuantity)
	num("pe-start-point", &p.PEStartPoint)
	num("ce-start-point", &p.CEStartPoint)
	num("min-price-to-sell", &p.MinPriceToSell)
	integer("sell-multiplier-threshold", &p.SellMultiplierThreshold)
}
