package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"survivor-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "survivor",
		Short:         "Gap-trigger option writing engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", defaultConfigPath, "Configuration file path")
	root.PersistentFlags().String("log-level", "", "Override app.log_level")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "survivor", version)
		},
	}
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration, apply flag overrides, and validate every instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			for _, inst := range cfg.Active() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s gaps pe=%.0f ce=%.0f qty pe=%d ce=%d\n",
					inst.Name, inst.SymbolInitials, inst.PEGap, inst.CEGap, inst.PEQuantity, inst.CEQuantity)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	}
	addOverrideFlags(cmd)
	return cmd
}

// loadConfig reads --config, applies overrides, and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
