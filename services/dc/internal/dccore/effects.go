package dccore

import (
	"time"

	"directcharge-go/types"
)

// Telemetry is one sample of the charger and battery.
type Telemetry struct {
	Valid     bool // false when a read failed
	VIN       int32
	IIN       int32
	VBAT      int32
	DieTemp   int32 // deci-degrees C
	GaugeVBAT int32 // fuel gauge reading, 0 if none
	Status    types.DCStatus
}

// Input is what one tick observes.
type Input struct {
	Tel Telemetry
}

// EffectKind enumerates the side effects Step asks its caller to execute.
type EffectKind uint8

const (
	EffPrepare EffectKind = iota
	EffEnable
	EffSetInputCurrent
	EffSetFloatVoltage
	EffSetSwitchFreq
	EffSetRCPDetect
	EffSetWatchdog
	EffSetOVDelta
	EffRequestPower
	EffNotifyMode
	EffNotifyDone
	EffNotifyHealth
)

var effectNames = [...]string{
	EffPrepare:         "prepare",
	EffEnable:          "enable",
	EffSetInputCurrent: "set_input_current",
	EffSetFloatVoltage: "set_float_voltage",
	EffSetSwitchFreq:   "set_switch_freq",
	EffSetRCPDetect:    "set_rcp_detect",
	EffSetWatchdog:     "set_watchdog",
	EffSetOVDelta:      "set_ov_delta",
	EffRequestPower:    "request_power",
	EffNotifyMode:      "notify_mode",
	EffNotifyDone:      "notify_done",
	EffNotifyHealth:    "notify_health",
}

func (k EffectKind) String() string {
	if int(k) < len(effectNames) {
		return effectNames[k]
	}
	return "unknown"
}

// PowerRequest is one adapter operating point.
type PowerRequest struct {
	Vol    int32 // µV, 20 mV steps for APDO
	Cur    int32 // µA, 50 mA steps for APDO
	Object uint8 // 1-based source object position
	Fixed  bool
}

// Effect is a single command for the charger, adapter or upstream.
type Effect struct {
	Kind   EffectKind
	On     bool  // Enable, SetRCPDetect, SetWatchdog
	Value  int32 // µA or µV, OV delta percent
	Code   uint8 // switching frequency
	Power  PowerRequest
	State  State  // NotifyMode
	Health string // NotifyHealth
	Reason string
}

// Result is what one call into the core returns.
type Result struct {
	Effects []Effect
	// Delay before the next tick; meaningful only while the session runs.
	Delay time.Duration
	// Stopped is set when the session ended on this call.
	Stopped bool
	// Outcome of classification on this tick, Ok if none ran.
	Outcome Outcome
	// Applied is the request whose effect completed on this tick.
	Applied RequestKind
}

// Has reports whether r contains an effect of kind k.
func (r Result) Has(k EffectKind) bool {
	for _, e := range r.Effects {
		if e.Kind == k {
			return true
		}
	}
	return false
}
