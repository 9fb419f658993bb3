package dccore

// State is the reported charging state.
type State uint8

const (
	NoCharging State = iota
	CheckVbat
	PresetDC
	CheckActive
	AdjustCC
	StartCC
	CCMode
	StartCV
	CVMode
	ChargingDone
	WirelessCVMode
	FpdoCVMode
	BypassMode
	DCModeChange
	AdjustTaVol
	AdjustTaCur
)

var stateNames = [...]string{
	NoCharging:     "no_charging",
	CheckVbat:      "check_vbat",
	PresetDC:       "preset_dc",
	CheckActive:    "check_active",
	AdjustCC:       "adjust_cc",
	StartCC:        "start_cc",
	CCMode:         "cc_mode",
	StartCV:        "start_cv",
	CVMode:         "cv_mode",
	ChargingDone:   "charging_done",
	WirelessCVMode: "wireless_cv",
	FpdoCVMode:     "fpdo_cv",
	BypassMode:     "bypass",
	DCModeChange:   "dc_mode_change",
	AdjustTaVol:    "adjust_ta_vol",
	AdjustTaCur:    "adjust_ta_cur",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Stable reports the states that accept asynchronous requests.
func (s State) Stable() bool {
	switch s {
	case CCMode, CVMode, BypassMode, FpdoCVMode, WirelessCVMode, ChargingDone:
		return true
	}
	return false
}

// cvLike reports the states in which an RCP trip means the battery is full.
func (s State) cvLike() bool {
	switch s {
	case StartCV, CVMode, ChargingDone, WirelessCVMode, FpdoCVMode:
		return true
	}
	return false
}

// AdapterMode selects the compensator family.
type AdapterMode uint8

const (
	AdapterAPDO AdapterMode = iota
	AdapterFPDO
	AdapterWireless
)

func (a AdapterMode) String() string {
	switch a {
	case AdapterFPDO:
		return "fpdo"
	case AdapterWireless:
		return "wireless"
	}
	return "apdo"
}

// ChgMode is the charge-pump ratio as a multiplier of the 2:1 unit.
type ChgMode uint8

const (
	ChgModeNone ChgMode = 0
	ChgMode2to1 ChgMode = 1
	ChgMode4to1 ChgMode = 2
)

// TaCtrl is the adapter behaviour the compensator assumes.
type TaCtrl uint8

const (
	TaCtrlCurrentLimit TaCtrl = iota
	TaCtrlConstantVoltage
)

// DCMode is the pass-through configuration.
type DCMode uint8

const (
	DCModeNormal DCMode = iota
	DCModeBypass2to1
	DCModeBypass4to1
)

func (m DCMode) String() string {
	switch m {
	case DCModeBypass2to1:
		return "bypass_2to1"
	case DCModeBypass4to1:
		return "bypass_4to1"
	}
	return "normal"
}

// Inc is the variable raised on the previous compensation tick.
type Inc uint8

const (
	IncNone Inc = iota
	IncVol
	IncCur
)

// Outcome is the classifier verdict for one tick.
type Outcome uint8

const (
	Ok Outcome = iota
	Retryable
	Fatal
	DoneByRCP
	Recheck // ambiguous standby, re-read after RCPRecheck
)

func (o Outcome) String() string {
	switch o {
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	case DoneByRCP:
		return "done_by_rcp"
	case Recheck:
		return "recheck"
	}
	return "ok"
}

// task is the routine the next tick runs.
type task uint8

const (
	taskNone task = iota
	taskCheckVbat
	taskPresetDC
	taskPresetConfig
	taskCheckActive
	taskAdjustCC
	taskStartCC
	taskCheckCC
	taskStartCV
	taskCheckCV
	taskAdjustTaVol
	taskAdjustTaCur
	taskCheckWCCV
	taskCheckBypass
	taskDCModeChange
	taskCheckFPDO
)

// taskAfterPD maps the state in which a PD request was issued to the
// routine that evaluates its effect.
func taskAfterPD(s State) task {
	switch s {
	case PresetDC:
		return taskPresetConfig
	case AdjustCC:
		return taskAdjustCC
	case StartCC:
		return taskStartCC
	case CCMode:
		return taskCheckCC
	case StartCV:
		return taskStartCV
	case CVMode:
		return taskCheckCV
	case AdjustTaVol:
		return taskAdjustTaVol
	case AdjustTaCur:
		return taskAdjustTaCur
	case BypassMode:
		return taskCheckBypass
	case DCModeChange:
		return taskDCModeChange
	}
	return taskNone
}
