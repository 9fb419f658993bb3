package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"directcharge-go/internal/output"
	"directcharge-go/services/dc"
	"directcharge-go/types"
)

var (
	runAdapter string
	runLimit   time.Duration
	runEvery   int
	runActions []string
	runAll     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario and print its trace",
	Long: `Run a scenario and print its trace.

Rows are printed on state changes, on notes and every --every ticks.
Actions are given as AT:VERB[:VALUE], for example:

  dcsim run --action 30m:set_input_current:2000000 --action 1h:set_dc_mode:bypass_2to1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScenario()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("adapter") {
			sc.Adapter = runAdapter
		}
		if cmd.Flags().Changed("limit") {
			sc.Limit = runLimit
		}
		for _, s := range runActions {
			a, err := parseAction(s)
			if err != nil {
				return err
			}
			sc.Actions = append(sc.Actions, a)
		}
		sortActions(sc.Actions)
		return runScenario(cmd.Context(), sc)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runAdapter, "adapter", "a", types.AdapterAPDO, "Adapter kind: apdo, fpdo or wireless")
	runCmd.Flags().DurationVarP(&runLimit, "limit", "l", 4*time.Hour, "Simulated time limit")
	runCmd.Flags().IntVar(&runEvery, "every", 50, "Print every Nth tick")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Print every tick")
	runCmd.Flags().StringArrayVar(&runActions, "action", nil, "Scripted action AT:VERB[:VALUE] (repeatable)")
	rootCmd.AddCommand(runCmd)
}

// parseAction reads AT:VERB[:VALUE]. VALUE is µA or µV for the current
// and voltage verbs and a mode name for set_dc_mode.
func parseAction(s string) (dc.Action, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return dc.Action{}, fmt.Errorf("action %q: want AT:VERB[:VALUE]", s)
	}
	at, err := time.ParseDuration(parts[0])
	if err != nil {
		return dc.Action{}, fmt.Errorf("action %q: %w", s, err)
	}
	a := dc.Action{At: at, Verb: parts[1]}
	var arg string
	if len(parts) == 3 {
		arg = parts[2]
	}
	switch a.Verb {
	case "set_input_current", "set_float_voltage":
		v, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return dc.Action{}, fmt.Errorf("action %q: %w", s, err)
		}
		a.Value = int32(v)
	case "set_dc_mode":
		if arg == "" {
			return dc.Action{}, fmt.Errorf("action %q: missing mode", s)
		}
		a.Mode = arg
	}
	return a, nil
}

// sortActions orders actions by time, keeping the given order for ties.
func sortActions(as []dc.Action) {
	for i := 1; i < len(as); i++ {
		for j := i; j > 0 && as[j].At < as[j-1].At; j-- {
			as[j], as[j-1] = as[j-1], as[j]
		}
	}
}

func runScenario(ctx context.Context, sc dc.Scenario) error {
	ui.VerboseLog("adapter=%s limit=%s actions=%d", sc.Adapter, sc.Limit, len(sc.Actions))

	tr, err := dc.Simulate(ctx, sc)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"T", "STATE", "TA_MV", "TA_MA", "IIN_MA", "VBAT_MV", "IIN_CC_MA", "STATUS", "NOTE"})
	prev := ""
	for i, r := range tr.Rows {
		if !runAll && r.State == prev && r.Note == "" && (runEvery <= 0 || i%runEvery != 0) && i != len(tr.Rows)-1 {
			continue
		}
		prev = r.State
		_ = table.Append([]string{
			r.At.Round(time.Millisecond).String(),
			output.StateColor(r.State),
			output.Milli(r.TaVol),
			output.Milli(r.TaCur),
			output.Milli(r.IIN),
			output.Milli(r.VBAT),
			output.Milli(r.IinCC),
			strings.Join(types.Names(r.Status, types.DCStatusTable[:]), ","),
			r.Note,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintln(ui.Out)
	switch {
	case tr.Done:
		ui.Success("Charging done after %s (%d power requests)", tr.Elapsed.Round(time.Second), tr.Requests)
	case tr.Health.Code != "" && tr.Health.Code != types.HealthGood:
		ui.Error("Stopped after %s: %s %s", tr.Elapsed.Round(time.Second), output.HealthColor(tr.Health.Code), tr.Health.Reason)
	default:
		ui.Warning("Not done after %s", tr.Elapsed.Round(time.Second))
	}
	return nil
}
