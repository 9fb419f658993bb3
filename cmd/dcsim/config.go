package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func configShowRun() error {
	sc, err := loadScenario()
	if err != nil {
		return err
	}
	if f := viper.ConfigFileUsed(); f != "" {
		ui.Info("Config file: %s", f)
	} else {
		ui.Info("Config file: (none, using defaults)")
	}
	out, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	fmt.Fprint(ui.Out, string(out))
	return nil
}
