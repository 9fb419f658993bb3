package dccore

import (
	"directcharge-go/pd"
	"directcharge-go/x/mathx"
)

func (m *machine) checkVbat() {
	m.setState(CheckVbat)
	if m.t.VBAT > DCVbatMin {
		m.s.Retry = 0
		m.next(taskPresetDC, 0)
		return
	}
	m.next(taskCheckVbat, VbatRecheck)
}

// presetDC selects the adapter object and the initial operating point.
func (m *machine) presetDC() {
	s := m.s
	m.setState(PresetDC)
	m.emit(Effect{Kind: EffPrepare})
	m.emit(Effect{Kind: EffSetWatchdog, On: true})

	if m.vbat() > s.Vfloat {
		println("[dc] vbat", m.vbat(), "above vfloat", s.Vfloat)
	}

	switch s.Adapter {
	case AdapterWireless:
		s.IinCC = s.IinCfg
		m.next(taskPresetConfig, 0)
		return

	case AdapterFPDO:
		c, err := pd.SelectFixed(s.caps, fpdoVol)
		if err != nil {
			m.fatal("no_fpdo")
			return
		}
		m.emit(Effect{Kind: EffSetOVDelta, Value: 40})
		s.ovRaised = true
		s.TaObject = c.Index
		s.TaVol = c.MaxVol
		s.TaMaxVol = c.MaxVol
		s.IinCC = s.IinCfg
		s.TaMaxCur = mathx.Min(s.IinCC, c.MaxCur)
		s.TaCur = s.TaMaxCur
		s.TaMaxPwr = int32(int64(s.TaMaxVol) / 1000 * int64(s.TaMaxCur) / 1000)
		m.sendPD()
		return
	}

	s.TaMaxCur = s.IinCfg
	want := s.Params.TaMaxVol * int32(s.Params.ChgMode)
	c, err := pd.SelectAPDO(s.caps, want, s.TaMaxCur)
	s.ChgMode = s.Params.ChgMode
	if err != nil && s.Params.ChgMode == ChgMode4to1 {
		c, err = pd.SelectAPDO(s.caps, s.Params.TaMaxVol, s.TaMaxCur)
		s.ChgMode = ChgMode2to1
	}
	if err != nil {
		s.ChgMode = ChgModeNone
		m.fatal("no_apdo")
		return
	}
	s.TaObject = c.Index
	s.TaMaxCur = c.MaxCur
	s.TaMaxPwr = c.MaxPwr
	cm := m.cm()

	s.IinCC = mathx.Min(s.IinCfg, s.TaMaxCur*cm)
	s.IinCfg = s.IinCC
	iin := mathx.FloorStep(s.IinCC, PDCurStep)
	s.TaMaxVol = m.maxVolFor(iin)
	s.TaVol = mathx.Min(m.presetVol(), s.TaMaxVol)
	s.TaCur = m.taCurFor(iin)
	s.IinCC = s.IinCfg
	m.sendPD()
}

// presetConfig programs the charger for the preset operating point and
// enables it.
func (m *machine) presetConfig() {
	s := m.s
	m.setState(PresetDC)
	m.setIin(s.IinCC)
	m.programVfloat()
	switch {
	case s.Adapter == AdapterFPDO:
		m.setFsw(s.Params.FswCfgFPDO)
	case s.IinCC > s.Params.IinLowFreq:
		m.setFsw(s.Params.FswCfg)
	default:
		m.setFsw(s.Params.FswCfgLow)
	}
	m.enable(true)
	s.PrevIin = 0
	s.PrevInc = IncNone
	m.next(taskCheckActive, EnableDelay)
}

func (m *machine) checkActive() {
	s := m.s
	m.setState(CheckActive)
	if ok, _ := m.guard(); !ok {
		return
	}
	s.Retry = 0
	switch s.Adapter {
	case AdapterFPDO:
		m.next(taskCheckFPDO, 0)
	case AdapterWireless:
		m.next(taskCheckWCCV, 0)
	default:
		m.next(taskAdjustCC, 0)
	}
}
