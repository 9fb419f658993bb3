package dccore

import (
	"directcharge-go/types"
	"directcharge-go/x/mathx"
)

// switchFreqStep runs one step of lowering the input current across
// IinLowFreq. The converter is stopped while the frequency changes, with
// the adapter parked near the pass-through voltage.
func (m *machine) switchFreqStep() {
	s := m.s
	cm := m.cm()
	park := func() int32 {
		v := mathx.Min(2*m.vbat()*cm+taVolPreOffset, s.TaTargetVol)
		return mathx.FloorStep(v, PDVolStep)
	}

	switch s.swFreqStep {
	case 1:
		s.TaVol = park()
		s.swFreqStep = 2
		m.sendPD()

	case 2:
		m.enable(false)
		s.swFreqStep = 3
		m.next(taskAdjustTaCur, DisableDelay)

	case 3:
		if s.newIin > s.Params.IinLowFreq {
			m.setFsw(s.Params.FswCfg)
		} else {
			m.setFsw(s.Params.FswCfgLow)
		}
		s.swFreqStep = 4
		m.next(taskAdjustTaCur, 0)

	case 4:
		s.IinCC = mathx.FloorStep(s.newIin, PDCurStep)
		s.TaCur = m.taCurFor(s.IinCC)
		s.TaVol = park()
		s.swFreqStep = 5
		m.sendPD()

	case 5:
		m.enable(true)
		s.swFreqStep = 6
		m.next(taskAdjustTaCur, EnableDelay)

	default:
		s.swFreqStep = 0
		if !m.t.Status.Has(types.DCActive) {
			m.fatal("not_active")
			return
		}
		s.TaMaxVol = m.maxVolFor(s.newIin)
		s.IinCC = s.newIin
		s.TaVol = s.TaTargetVol
		s.TaCur = m.taCurFor(s.IinCC)
		m.sendPD()
	}
}
