package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"directcharge-go/internal/output"
	"directcharge-go/services/dc"
)

var (
	ui      *output.UI
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dcsim",
	Short: "Direct-charging simulator",
	Long: `dcsim drives the direct-charging state machine against a battery and
PPS adapter model. Time is virtual: a four hour charge runs in well under
a second.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Scenario file (default ./dcsim.yaml)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("dcsim")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DCSIM")
	viper.AutomaticEnv()

	def := dc.DefaultScenario()
	viper.SetDefault("adapter", def.Adapter)
	viper.SetDefault("limit", def.Limit)
	viper.SetDefault("stop_on_done", def.StopOnDone)
	viper.SetDefault("keepalive", def.Keepalive)
	viper.SetDefault("watchdog", def.Watchdog)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// loadScenario overlays the configuration onto the default scenario.
func loadScenario() (dc.Scenario, error) {
	sc := dc.DefaultScenario()
	err := viper.Unmarshal(&sc, func(c *mapstructure.DecoderConfig) {
		c.TagName = "yaml"
	})
	if err != nil {
		return sc, fmt.Errorf("decode scenario: %w", err)
	}
	return sc, nil
}
