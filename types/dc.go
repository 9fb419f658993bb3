package types

// ------------------------
// Direct charger (dc/<name>/...)
// ------------------------

// DCStatus is the charger protection and loop flag bank, normalised
// from the device registers.
type DCStatus uint32

const (
	DCActive    DCStatus = 1 << 0 // power state: switching
	DCStandby   DCStatus = 1 << 1
	DCShutdown  DCStatus = 1 << 2
	DCVinOK     DCStatus = 1 << 3 // V_OK: VIN inside its window
	DCNTC       DCStatus = 1 << 4
	DCTempReg   DCStatus = 1 << 5 // die temperature regulation
	DCCtrlLimit DCStatus = 1 << 6
	DCTimer     DCStatus = 1 << 7 // charge or watchdog timer expired
	DCCflyShort DCStatus = 1 << 8
	DCVoutUV    DCStatus = 1 << 9
	DCVbatOV    DCStatus = 1 << 10
	DCVinOV     DCStatus = 1 << 11
	DCVinUV     DCStatus = 1 << 12
	DCOCPFast   DCStatus = 1 << 13
	DCOCPAvg    DCStatus = 1 << 14
	DCIinLoop   DCStatus = 1 << 15
	DCChgLoop   DCStatus = 1 << 16
	DCVfltLoop  DCStatus = 1 << 17
	DCChargeTmr DCStatus = 1 << 18
	DCWatchdog  DCStatus = 1 << 19
)

func (s DCStatus) Has(b DCStatus) bool { return s&b != 0 }

// DCStatus display.
var DCStatusTable = [...]BitName[DCStatus]{
	{DCActive, "active"},
	{DCStandby, "standby"},
	{DCShutdown, "shutdown"},
	{DCVinOK, "v_ok"},
	{DCNTC, "ntc"},
	{DCTempReg, "temp_reg"},
	{DCCtrlLimit, "ctrl_limit"},
	{DCTimer, "timer"},
	{DCCflyShort, "cfly_short"},
	{DCVoutUV, "vout_uv"},
	{DCVbatOV, "vbat_ov"},
	{DCVinOV, "vin_ov"},
	{DCVinUV, "vin_uv"},
	{DCOCPFast, "ocp_fast"},
	{DCOCPAvg, "ocp_avg"},
	{DCIinLoop, "iin_loop"},
	{DCChgLoop, "chg_loop"},
	{DCVfltLoop, "vflt_loop"},
	{DCChargeTmr, "charge_timer"},
	{DCWatchdog, "watchdog"},
}

// DCSample is one telemetry read of a direct charger.
type DCSample struct {
	VIN     int32 // µV
	IIN     int32 // µA
	VBAT    int32 // µV
	DieTemp int32 // deci-degrees C
	Status  DCStatus
}

// Adapter kinds accepted by "start".
const (
	AdapterAPDO     = "apdo"
	AdapterFPDO     = "fpdo"
	AdapterWireless = "wireless"
)

// Pass-through modes accepted by "set_dc_mode".
const (
	DCModeNormal     = "normal"
	DCModeBypass2to1 = "bypass_2to1"
	DCModeBypass4to1 = "bypass_4to1"
)

// Health codes published on dc/<name>/health.
const (
	HealthGood  = "good"
	HealthDCErr = "dc_err"
)

// Retained: dc/<name>/state
type DCState struct {
	Session string `json:"session,omitempty" yaml:"session,omitempty"`
	State   string `json:"state" yaml:"state"`
	Adapter string `json:"adapter,omitempty" yaml:"adapter,omitempty"`
	DCMode  string `json:"dc_mode" yaml:"dc_mode"`
	ChgMode uint8  `json:"chg_mode" yaml:"chg_mode"` // 1 = 2:1, 2 = 4:1, 0 = none
	Retry   uint8  `json:"retry" yaml:"retry"`
	TS      int64  `json:"ts_ms" yaml:"ts_ms"`
}

// Retained: dc/<name>/value
type DCValue struct {
	VIN_uV     int32    `json:"vin_uV" yaml:"vin_uV"`
	IIN_uA     int32    `json:"iin_uA" yaml:"iin_uA"`
	VBAT_uV    int32    `json:"vbat_uV" yaml:"vbat_uV"`
	DieTemp_dC int32    `json:"die_temp_dC" yaml:"die_temp_dC"`
	TaVol_uV   int32    `json:"ta_vol_uV" yaml:"ta_vol_uV"`
	TaCur_uA   int32    `json:"ta_cur_uA" yaml:"ta_cur_uA"`
	TaMaxV_uV  int32    `json:"ta_max_vol_uV" yaml:"ta_max_vol_uV"`
	IinCC_uA   int32    `json:"iin_cc_uA" yaml:"iin_cc_uA"`
	Vfloat_uV  int32    `json:"vfloat_uV" yaml:"vfloat_uV"`
	Status     DCStatus `json:"status" yaml:"status"`
	TS         int64    `json:"ts_ms" yaml:"ts_ms"`
}

// Retained: dc/<name>/health
type DCHealth struct {
	Code   string `json:"code" yaml:"code"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	TS     int64  `json:"ts_ms" yaml:"ts_ms"`
}

// Event kinds on dc/<name>/event.
const (
	EventStarted = "started"
	EventDone    = "done"
	EventStopped = "stopped"
)

// Non-retained: dc/<name>/event
type DCEvent struct {
	Kind    string `json:"kind" yaml:"kind"`
	Session string `json:"session,omitempty" yaml:"session,omitempty"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
	TS      int64  `json:"ts_ms" yaml:"ts_ms"`
}

// Reply to any dc/<name>/ctrl/<verb> request.
type DCReply struct {
	OK    bool     `json:"ok" yaml:"ok"`
	Error string   `json:"error,omitempty" yaml:"error,omitempty"`
	State *DCState `json:"state,omitempty" yaml:"state,omitempty"` // verb: "state"
}

// Controls
type DCStart struct {
	Adapter string `json:"adapter" yaml:"adapter"` // verb: "start"
}
type DCStop struct{} // verb: "stop"
type DCSetInputCurrent struct {
	MicroA int32 `json:"uA" yaml:"uA"` // verb: "set_input_current"
}
type DCSetFloatVoltage struct {
	MicroV int32 `json:"uV" yaml:"uV"` // verb: "set_float_voltage"
}
type DCSetMode struct {
	Mode string `json:"mode" yaml:"mode"` // verb: "set_dc_mode"
}
