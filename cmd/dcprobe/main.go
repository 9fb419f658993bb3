// Command dcprobe reads a PCA9468 direct charger over Linux I2C and prints
// its telemetry and status banks.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"directcharge-go/drivers/pca9468"
	"directcharge-go/internal/output"
	"directcharge-go/services/dc"
	"directcharge-go/types"
)

var (
	ui *output.UI

	busName   string
	addr      uint16
	configure bool
	watch     time.Duration
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "dcprobe",
	Short: "Read a PCA9468 direct charger",
	Long: `dcprobe opens an I2C bus, reads the PCA9468 ADC channels and status
banks and prints them. Without --configure the device is only read.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui = output.New()
		ui.Verbose = verbose
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return probe(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&busName, "bus", "b", "1", "I2C bus name or number")
	rootCmd.Flags().Uint16Var(&addr, "addr", pca9468.AddressDefault, "Device address")
	rootCmd.Flags().BoolVar(&configure, "configure", false, "Program the power-on baseline before reading")
	rootCmd.Flags().DurationVarP(&watch, "watch", "w", 0, "Repeat at this interval")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		return fmt.Errorf("open i2c %s: %w", busName, err)
	}
	defer b.Close()
	if err := b.SetSpeed(400 * physic.KiloHertz); err != nil {
		ui.VerboseLog("bus speed unchanged: %v", err)
	}

	cfg := pca9468.DefaultConfig()
	cfg.Address = addr
	dev := pca9468.New(b, cfg)
	if configure {
		if err := dev.Configure(); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
		ui.Success("Configured device at 0x%02x", addr)
	}
	drv := dc.NewDriver(dev)

	for {
		if err := printOnce(dev, drv); err != nil {
			return err
		}
		if watch <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watch):
		}
		fmt.Fprintln(ui.Out)
	}
}

func printOnce(dev *pca9468.Device, drv *dc.Driver) error {
	s, err := drv.Sample()
	if err != nil {
		return fmt.Errorf("sample: %w", err)
	}
	table := ui.Table([]string{"CHANNEL", "VALUE"})
	_ = table.Append([]string{"vin", output.Milli(s.VIN) + " mV"})
	_ = table.Append([]string{"iin", output.Milli(s.IIN) + " mA"})
	_ = table.Append([]string{"vbat", output.Milli(s.VBAT) + " mV"})
	_ = table.Append([]string{"die_temp", deciC(s.DieTemp)})
	for _, ch := range []struct {
		name string
		ch   pca9468.Channel
		unit string
	}{
		{"vout", pca9468.ChVOUT, "mV"},
		{"iout", pca9468.ChIOUT, "mA"},
		{"ntc", pca9468.ChNTC, "mV"},
	} {
		v, err := dev.ReadADC(ch.ch)
		if err != nil {
			ui.VerboseLog("%s: %v", ch.name, err)
			continue
		}
		_ = table.Append([]string{ch.name, output.Milli(v) + " " + ch.unit})
	}
	if err := table.Render(); err != nil {
		return err
	}

	flags := types.Names(s.Status, types.DCStatusTable[:])
	switch {
	case s.Status.Has(types.DCActive):
		ui.Success("Status: %s", strings.Join(flags, ", "))
	case len(flags) == 0:
		ui.Info("Status: (none)")
	default:
		ui.Info("Status: %s", strings.Join(flags, ", "))
	}
	return nil
}

// deciC formats deci-degrees Celsius.
func deciC(v int32) string {
	sign := ""
	if v < 0 {
		sign = "-"
	}
	a := abs(v)
	return fmt.Sprintf("%s%d.%d C", sign, a/10, a%10)
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
