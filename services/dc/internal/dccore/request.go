package dccore

import (
	"directcharge-go/errcode"
	"directcharge-go/x/mathx"
)

// Submit offers an asynchronous request to the session. At most one
// request is held; it is applied at a tick boundary by the routine of the
// current regulation state. The caller should run the next tick without
// delay after a nil return.
//
// While idle the value becomes the baseline for the next Start.
func Submit(s *Session, r Request) error {
	switch r.Kind {
	case ReqInputCurrent:
		if r.Value < s.Params.IinTopoff {
			return errcode.InvalidParams
		}
	case ReqFloatVoltage:
		if r.Value > s.MaxVfloat || r.Value < DCVbatMin {
			return errcode.InvalidParams
		}
	case ReqDCMode:
		if r.Mode > DCModeBypass4to1 {
			return errcode.InvalidParams
		}
		if !s.Active() {
			return errcode.NotCharging
		}
		if s.Adapter != AdapterAPDO {
			return errcode.Unsupported
		}
		if r.Mode == s.DCMode {
			return nil
		}
	default:
		return errcode.InvalidParams
	}

	switch {
	case r.Kind == ReqDCMode:
	case s.State == NoCharging:
		if r.Kind == ReqInputCurrent {
			s.Params.IinCfg = r.Value
			s.IinCfg, s.IinCC = r.Value, r.Value
		} else {
			s.Params.Vfloat = r.Value
			s.Vfloat = r.Value
		}
		return nil
	case s.State == CheckVbat:
		if r.Kind == ReqInputCurrent {
			s.IinCfg, s.IinCC = r.Value, r.Value
		} else {
			s.Vfloat = r.Value
		}
		return nil
	}

	if s.HasPending() || !s.State.Stable() {
		return errcode.Busy
	}
	s.Pending = r
	return nil
}

// serviceRequest applies the pending request for the current state. It
// reports whether the tick was consumed.
func (m *machine) serviceRequest() bool {
	s := m.s
	r := s.Pending
	if r.Kind == ReqNone {
		return false
	}
	println("[dc] apply", r.Kind.String(), r.Value, "in", s.State.String())

	switch s.State {
	case FpdoCVMode:
		switch r.Kind {
		case ReqInputCurrent:
			s.IinCC, s.IinCfg = r.Value, r.Value
			m.setIin(r.Value)
		case ReqFloatVoltage:
			s.Vfloat = r.Value
			m.programVfloat()
		}
		m.requestDone()
		m.next(taskCheckFPDO, RequestApplied)
		return true

	case WirelessCVMode:
		switch r.Kind {
		case ReqInputCurrent:
			s.IinCC, s.IinCfg = r.Value, r.Value
			m.setIin(r.Value)
			m.requestDone()
		case ReqFloatVoltage:
			if r.Value > m.vbat() {
				s.Vfloat = r.Value
				m.programVfloat()
				m.requestDone()
			} else {
				println("[dc] vfloat", r.Value, "below vbat, dropped")
				s.Pending = Request{}
			}
		default:
			s.Pending = Request{}
		}
		m.next(taskCheckWCCV, RequestApplied)
		return true
	}

	switch r.Kind {
	case ReqDCMode:
		m.setNewDCMode(r.Mode)
	case ReqInputCurrent:
		m.setNewIin(r.Value)
	case ReqFloatVoltage:
		m.setNewVfloat(r.Value)
	}
	return true
}

// checkTask is the routine that regulates a stable state.
func checkTask(st State) task {
	switch st {
	case CCMode:
		return taskCheckCC
	case CVMode, ChargingDone:
		return taskCheckCV
	case BypassMode:
		return taskCheckBypass
	case WirelessCVMode:
		return taskCheckWCCV
	case FpdoCVMode:
		return taskCheckFPDO
	}
	return taskCheckCC
}

func (m *machine) setNewIin(iin int32) {
	s := m.s
	cm := m.cm()

	if s.DCMode != DCModeNormal {
		m.setState(BypassMode)
		s.IinCfg, s.IinCC = iin, iin
		m.setIin(iin)
		m.requestDone()
		s.TaCur = m.taCurFor(iin)
		m.sendPD()
		return
	}

	s.newIin = iin
	s.retState = s.State
	if iin < TaMinCur*cm {
		s.IinCfg, s.IinCC = iin, iin
		m.setIin(iin)
		s.TaCur = TaMinCur
		m.setState(AdjustTaVol)
		m.sendPD()
		return
	}
	m.setState(AdjustTaCur)
	m.adjustTaCurrentStep()
}

// adjustTaVoltage moves a low input-current target by voltage with the
// adapter current at its floor.
func (m *machine) adjustTaVoltage() {
	s := m.s
	m.setState(AdjustTaVol)
	if ok, _ := m.guard(); !ok {
		return
	}
	iin := m.t.IIN
	switch {
	case iin > s.IinCC+iinCCCompOffset:
		s.TaVol -= PDVolStep
		m.sendPD()
	case iin < s.IinCC-iinCCCompOffset && s.TaVol < s.TaMaxVol:
		s.TaVol = mathx.Min(s.TaVol+PDVolStep, s.TaMaxVol)
		m.sendPD()
	default:
		m.finishIin()
	}
}

// finishIin returns to the state the request arrived in.
func (m *machine) finishIin() {
	s := m.s
	m.requestDone()
	s.TaTargetVol = s.TaVol
	m.setState(s.retState)
	m.next(checkTask(s.retState), RequestApplied)
}

func (m *machine) adjustTaCurrent() {
	s := m.s
	m.setState(AdjustTaCur)
	if s.swFreqStep != 0 {
		m.switchFreqStep()
		return
	}
	if ok, _ := m.guard(); !ok {
		return
	}
	m.adjustTaCurrentStep()
}

// adjustTaCurrentStep moves the input-current target at or above the
// adapter floor. Changes that cross IinLowFreq also move the switching
// frequency.
func (m *machine) adjustTaCurrentStep() {
	s := m.s
	cm := m.cm()
	newIin := s.newIin

	if s.TaCur == m.taCurFor(newIin) {
		s.IinCC = newIin
		s.IinCfg = s.IinCC
		m.setIin(s.IinCfg)
		m.finishIin()
		return
	}

	if newIin > s.IinCfg {
		sameFreq := newIin <= s.Params.IinLowFreq || s.Fsw == s.Params.FswCfg
		if sameFreq {
			m.setIin(newIin)
			m.requestDone()
			s.IinCfg = newIin
			s.IinCC = mathx.Min(s.IinCfg, s.TaMaxCur*cm)
			s.IinCfg = s.IinCC
			iin := mathx.FloorStep(s.IinCC, PDCurStep)
			s.TaMaxVol = m.maxVolFor(iin)
			s.TaVol = mathx.Min(m.presetVol(), s.TaMaxVol)
			s.TaCur = m.taCurFor(iin)
			s.PrevIin = 0
			s.PrevInc = IncNone
			m.setState(AdjustCC)
			m.sendPD()
			return
		}
		if s.TaVol == s.TaTargetVol {
			s.TaVol = mathx.FloorStep(2*m.vbat()*cm+taVolPreOffset, PDVolStep)
			m.sendPD()
			return
		}
		// restart at the new frequency from preset
		m.enable(false)
		s.IinCfg = newIin
		m.requestDone()
		m.next(taskPresetDC, DisableDelay)
		return
	}

	high := newIin > s.Params.IinLowFreq
	if (high && s.Fsw == s.Params.FswCfg) || (!high && s.Fsw == s.Params.FswCfgLow) {
		s.TaMaxVol = m.maxVolFor(newIin)
		s.IinCC = newIin
		s.TaVol = s.TaTargetVol
		s.TaCur = m.taCurFor(s.IinCC)
		m.sendPD()
		return
	}
	s.swFreqStep = 1
	m.next(taskAdjustTaCur, 0)
}

func (m *machine) setNewVfloat(v int32) {
	s := m.s
	cm := m.cm()

	if s.DCMode != DCModeNormal {
		s.Vfloat = v
		m.programVfloat()
		m.requestDone()
		s.TaVol = m.bypassVol()
		m.sendPD()
		return
	}

	switch {
	case v > s.Vfloat:
		s.decVfloat = false
		s.Vfloat = v
		m.programVfloat()
		s.IinCfg = mathx.Min(s.IinCC, s.TaMaxCur*cm)
		m.setIin(s.IinCfg)
		s.IinCC = s.IinCfg
		m.requestDone()
		iin := mathx.FloorStep(s.IinCC, PDCurStep)
		s.TaMaxVol = m.maxVolFor(iin)
		s.TaVol = mathx.Min(m.presetVol(), s.TaMaxVol)
		s.TaCur = m.taCurFor(iin)
		s.PrevIin = 0
		s.PrevInc = IncNone
		m.setState(AdjustCC)
		m.sendPD()

	case v == s.Vfloat:
		m.requestDone()
		m.next(checkTask(s.State), 0)

	default:
		s.decVfloat = true
		s.Vfloat = v
		m.programVfloat()
		m.requestDone()
		m.setState(StartCV)
		m.next(taskStartCV, 0)
	}
}
