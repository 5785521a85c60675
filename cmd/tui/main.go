package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"survivor-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Survivor Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit instance knobs")
		fmt.Println("3) Enable / disable instances")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch engine")
		fmt.Println("6) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			if inst := pickInstance(reader, cfg); inst != nil {
				editInstance(reader, inst)
			}
		case "3":
			toggleInstances(reader, cfg)
		case "4":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "not saved, config invalid:\n%v\n", err)
			} else if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launchEngine(reader)
		case "6":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Broker: %s | Feed: %s | Call timeout: %s\n", cfg.Broker.Provider, cfg.Feed.Provider, cfg.Broker.CallTimeout())
	fmt.Printf("Order rate: %.2f/s | Paper qty cap per symbol: %d\n", cfg.Risk.OrderRatePerSec, cfg.Paper.MaxQtyPerSymbol)
	for i, inst := range cfg.Instances {
		state := "on"
		if inst.Disabled {
			state = "off"
		}
		fmt.Printf("[%d] %s (%s) %s on %s\n", i+1, inst.Name, state, inst.SymbolInitials, inst.IndexSymbol)
		fmt.Printf("    PE gap %.0f sym %.0f reset %.0f qty %d start %.2f\n",
			inst.PEGap, inst.PESymbolGap, inst.PEResetGap, inst.PEQuantity, inst.PEStartPoint)
		fmt.Printf("    CE gap %.0f sym %.0f reset %.0f qty %d start %.2f\n",
			inst.CEGap, inst.CESymbolGap, inst.CEResetGap, inst.CEQuantity, inst.CEStartPoint)
		fmt.Printf("    min premium %.2f | multiplier ceiling %d | tag %q\n",
			inst.MinPriceToSell, inst.SellMultiplierThreshold, inst.Tag)
	}
}

func pickInstance(reader *bufio.Reader, cfg *config.Config) *config.Instance {
	if len(cfg.Instances) == 0 {
		fmt.Println("no instances configured")
		return nil
	}
	if len(cfg.Instances) == 1 {
		return &cfg.Instances[0]
	}
	for i, inst := range cfg.Instances {
		fmt.Printf("%d) %s\n", i+1, inst.Name)
	}
	n := promptInt(reader, "Instance", 1)
	if n < 1 || n > len(cfg.Instances) {
		fmt.Println("no such instance")
		return nil
	}
	return &cfg.Instances[n-1]
}

func editInstance(reader *bufio.Reader, inst *config.Instance) {
	fmt.Printf("\n--- Edit %s ---\n", inst.Name)
	inst.SymbolInitials = promptString(reader, "Symbol initials", inst.SymbolInitials)
	inst.PEGap = promptFloat(reader, "PE gap", inst.PEGap)
	inst.CEGap = promptFloat(reader, "CE gap", inst.CEGap)
	inst.PESymbolGap = promptFloat(reader, "PE symbol gap", inst.PESymbolGap)
	inst.CESymbolGap = promptFloat(reader, "CE symbol gap", inst.CESymbolGap)
	inst.PEResetGap = promptFloat(reader, "PE reset gap", inst.PEResetGap)
	inst.CEResetGap = promptFloat(reader, "CE reset gap", inst.CEResetGap)
	inst.PEQuantity = promptInt(reader, "PE quantity", inst.PEQuantity)
	inst.CEQuantity = promptInt(reader, "CE quantity", inst.CEQuantity)
	inst.PEStartPoint = promptFloat(reader, "PE start point (0 = first tick)", inst.PEStartPoint)
	inst.CEStartPoint = promptFloat(reader, "CE start point (0 = first tick)", inst.CEStartPoint)
	inst.MinPriceToSell = promptFloat(reader, "Min price to sell", inst.MinPriceToSell)
	inst.SellMultiplierThreshold = promptInt(reader, "Sell multiplier threshold", inst.SellMultiplierThreshold)
	if err := inst.Params().Validate(); err != nil {
		fmt.Printf("warning, %s is not runnable yet:\n%v\n", inst.Name, err)
	}
}

func toggleInstances(reader *bufio.Reader, cfg *config.Config) {
	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		answer := promptString(reader, fmt.Sprintf("Enable %s (y/n)", inst.Name), yesNo(!inst.Disabled))
		inst.Disabled = !strings.HasPrefix(strings.ToLower(answer), "y")
	}
}

func launchEngine(reader *bufio.Reader) {
	fmt.Println("Launching survivor engine (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/survivor", "run", "--config", locateConfig())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start engine: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the engine and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line == "" {
		return current
	}
	return line
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptInt(reader *bufio.Reader, label string, current int) int {
	fmt.Printf("%s [%d]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.Atoi(line)
	if err != nil {
		fmt.Printf("invalid integer, keeping %d\n", current)
		return current
	}
	return val
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
