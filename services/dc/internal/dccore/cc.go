package dccore

import "directcharge-go/x/mathx"

// adjustCC is the initial convergence toward iin_cc after activation.
func (m *machine) adjustCC() {
	s := m.s
	m.setState(AdjustCC)
	if ok, _ := m.guard(); !ok {
		return
	}
	iin := m.t.IIN
	cm := m.cm()

	switch ccLoop(s, m.t) {
	case loopIin, loopChg:
		if s.TaCur > TaMinCur && s.TaCtrl == TaCtrlCurrentLimit {
			s.TaCur -= PDCurStep
			s.TaTargetVol = m.targetVol()
			s.PrevInc = IncNone
			m.setState(StartCC)
			m.next(taskStartCC, 0)
			return
		}
		s.TaVol -= PDVolStep
		s.TaTargetVol = s.TaVol
		m.setState(CCMode)
		m.sendPD()

	case loopVflt:
		s.TaTargetVol = s.TaVol
		m.next(taskStartCV, 0)

	case loopVinUV:
		m.next(taskAdjustCC, VinUVRecheck)

	default:
		m.adjustCCInactive(iin, cm)
	}
}

func (m *machine) adjustCCInactive(iin, cm int32) {
	s := m.s
	defer func() { s.PrevIin = iin }()

	volStep := func() {
		s.TaVol = mathx.Min(s.TaVol+taVolStepAdjCC*cm, s.TaMaxVol)
		s.PrevInc = IncVol
		m.sendPD()
	}
	curStep := func() {
		s.TaCur = mathx.Min(s.TaCur+PDCurStep, s.TaMaxCur)
		s.PrevInc = IncCur
		m.sendPD()
	}
	reached := func() {
		if s.TaCtrl == TaCtrlCurrentLimit {
			s.TaTargetVol = m.targetVol()
			m.setState(StartCC)
			m.next(taskStartCC, 0)
			return
		}
		s.TaTargetVol = s.TaVol
		m.next(taskCheckCC, 0)
	}

	switch {
	case iin > s.IinCC-iinAdcOffset:
		reached()
	case s.TaVol >= s.TaMaxVol:
		if s.TaCur >= s.TaMaxCur {
			s.TaTargetVol = s.TaVol
			m.next(taskCheckCC, 0)
			return
		}
		curStep()
	case iin < s.IinCC-taIinOffset:
		volStep()
	case iin > s.PrevIin+iinAdcOffset:
		volStep()
	case s.PrevInc == IncCur:
		volStep()
	case s.TaCur >= s.TaMaxCur:
		reached()
	case s.TaCur >= s.IinCC+taIinOffset:
		volStep()
	default:
		curStep()
	}
}

// startCC ramps the adapter voltage in coarse steps up to the target.
func (m *machine) startCC() {
	s := m.s
	m.setState(StartCC)
	if ok, _ := m.guard(); !ok {
		return
	}
	s.TaVol += taVolStepPreCC * m.cm()
	if s.TaVol >= s.TaTargetVol {
		s.TaVol = s.TaTargetVol
		m.setState(CCMode)
	}
	m.sendPD()
}

// checkCC regulates input current in constant-current mode and services
// pending requests.
func (m *machine) checkCC() {
	s := m.s
	m.setState(CCMode)
	if ok, _ := m.guard(); !ok {
		return
	}
	if m.serviceRequest() {
		return
	}

	switch ccLoop(s, m.t) {
	case loopInactive:
		switch {
		case s.TaCur <= TaMinCur || s.TaCtrl == TaCtrlConstantVoltage:
			m.voltageComp()
		case s.TaMaxVol >= TaMaxVolCP:
			m.currentComp()
		default:
			m.currentCompCP()
		}

	case loopVflt:
		m.next(taskStartCV, 0)

	case loopIin, loopChg:
		switch {
		case s.TaCur <= TaMinCur || s.TaCtrl == TaCtrlConstantVoltage:
			s.TaVol -= PDVolStep
		case s.TaCur <= s.IinCC-taCurLowOffset:
			// still limited below iin_cc: the adapter misbehaves, back off voltage
			s.TaVol -= PDVolStep
			s.TaTargetVol = s.TaVol
		default:
			s.TaCur -= PDCurStep
		}
		m.sendPD()

	case loopVinUV:
		m.next(taskCheckCC, VinUVRecheck)
	}
}
