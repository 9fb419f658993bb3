package dccore

import (
	"errors"
	"time"
)

// Control constants. Currents in µA, voltages in µV.
const (
	PDVolStep = 20_000 // APDO output voltage resolution
	PDCurStep = 50_000 // APDO operating current resolution

	TaMinCur = 1_000_000 // APDO operating current floor
	TaMinVol = 7_000_000

	taVolPresetFloor = 8_000_000 // x chg_mode
	taVolPreOffset   = 500_000
	taTargetOffset   = 100_000 // start-CC target above the float margin

	taVolStepAdjCC   = 40_000  // x chg_mode
	taVolStepPreCC   = 100_000 // x chg_mode
	taVolStepPreCV   = 20_000  // x chg_mode
	taVolStepPreCVHi = 40_000  // x chg_mode, float at its ceiling

	iinAdcOffset    = 20_000
	iinCCCompOffset = 50_000
	iinCPLowOffset  = 20_000
	taIinOffset     = 100_000
	taCurLowOffset  = 200_000

	// Adapters whose ceiling is below this are treated as power limited.
	TaMaxVolCP = 10_000_000

	DCVbatMin = 3_100_000

	bypassVolOffset = 200_000

	fpdoVol = 9_000_000

	MaxRetry      = 3
	fpdoDoneCount = 3
	MaxReadFails  = 10
)

// Delays between ticks.
const (
	PDMsgWait      = 200 * time.Millisecond
	EnableDelay    = 150 * time.Millisecond
	DisableDelay   = 200 * time.Millisecond
	BypassWait     = 200 * time.Millisecond
	RCPRecheck     = 200 * time.Millisecond
	ReadRetry      = 200 * time.Millisecond
	VinUVRecheck   = 1 * time.Second
	VbatRecheck    = 1 * time.Second
	CCPoll         = 10 * time.Second
	CVPoll         = 10 * time.Second
	CVPollFast     = 1 * time.Second
	FpdoCVPoll     = 5 * time.Second
	BypassPoll     = 10 * time.Second
	RequestApplied = 1 * time.Second
)

var (
	ErrIinCfg    = errors.New("iin_cfg must be positive")
	ErrVfloat    = errors.New("vfloat out of range")
	ErrChgMode   = errors.New("chg_mode must be 1 (2:1) or 2 (4:1)")
	ErrTopoff    = errors.New("iin_topoff must be below iin_cfg")
	ErrTaMaxVol  = errors.New("ta_max_vol below TA minimum")
	ErrFswCode   = errors.New("switching frequency code out of range")
	ErrCVPolling = errors.New("cv_polling must be positive")
)

// Params is the static platform configuration of one charger.
type Params struct {
	IinCfg    int32   `yaml:"iin_cfg_uA"`
	Vfloat    int32   `yaml:"vfloat_uV"`
	MaxVfloat int32   `yaml:"max_vfloat_uV"`
	TaMaxVol  int32   `yaml:"ta_max_vol_uV"` // per 2:1 unit
	ChgMode   ChgMode `yaml:"chg_mode"`

	IinTopoff      int32 `yaml:"iin_topoff_uA"`
	FpdoIinTopoff  int32 `yaml:"fpdo_iin_topoff_uA"`
	FpdoVnowTopoff int32 `yaml:"fpdo_vnow_topoff_uV"`

	// Switching-frequency codes and the input current that separates
	// the low and high frequency.
	FswCfg     uint8 `yaml:"fsw_cfg"`
	FswCfgLow  uint8 `yaml:"fsw_cfg_low"`
	FswCfgByp  uint8 `yaml:"fsw_cfg_byp"`
	FswCfgFPDO uint8 `yaml:"fsw_cfg_fpdo"`
	IinLowFreq int32 `yaml:"iin_low_freq_uA"`

	// FGVfloat compares the gauge VBAT against vfloat and programs the
	// float register with DftVfloat instead.
	FGVfloat  bool  `yaml:"fg_vfloat"`
	DftVfloat int32 `yaml:"dft_vfloat_uV"`

	Step1Vth  int32         `yaml:"step1_vth_uV"`
	CVPolling time.Duration `yaml:"cv_polling"`

	NTCProtect bool `yaml:"ntc_protect"`
}

func DefaultParams() Params {
	return Params{
		IinCfg:         3_000_000,
		Vfloat:         4_400_000,
		MaxVfloat:      4_450_000,
		TaMaxVol:       9_800_000,
		ChgMode:        ChgMode2to1,
		IinTopoff:      500_000,
		FpdoIinTopoff:  1_000_000,
		FpdoVnowTopoff: 4_360_000,
		FswCfg:         3,
		FswCfgLow:      0,
		FswCfgByp:      0,
		FswCfgFPDO:     3,
		IinLowFreq:     1_500_000,
		DftVfloat:      4_450_000,
		Step1Vth:       4_200_000,
		CVPolling:      2 * time.Second,
	}
}

func (p Params) Validate() error {
	if p.IinCfg <= 0 {
		return ErrIinCfg
	}
	if p.Vfloat < DCVbatMin || p.Vfloat > 5_000_000 || p.MaxVfloat < p.Vfloat {
		return ErrVfloat
	}
	if p.ChgMode != ChgMode2to1 && p.ChgMode != ChgMode4to1 {
		return ErrChgMode
	}
	if p.IinTopoff <= 0 || p.IinTopoff >= p.IinCfg {
		return ErrTopoff
	}
	if p.TaMaxVol < TaMinVol {
		return ErrTaMaxVol
	}
	for _, f := range []uint8{p.FswCfg, p.FswCfgLow, p.FswCfgByp, p.FswCfgFPDO} {
		if f > 0x0F {
			return ErrFswCode
		}
	}
	if p.CVPolling <= 0 {
		return ErrCVPolling
	}
	return nil
}
