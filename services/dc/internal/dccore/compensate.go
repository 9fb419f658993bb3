package dccore

import "directcharge-go/x/mathx"

// Compensators run in CC mode with no loop active. Each either issues a
// new adapter request or settles and polls again after CCPoll.

func (m *machine) settleCC() { m.next(taskCheckCC, CCPoll) }

// backOff lowers the operating point when input current overshoots.
func (m *machine) backOff() {
	s := m.s
	if s.TaCur <= s.IinCC-taCurLowOffset {
		s.TaVol -= PDVolStep
		s.TaTargetVol = s.TaVol
	} else {
		s.TaCur -= PDCurStep
	}
	m.sendPD()
}

// currentComp holds iin at iin_cc against a current-limiting adapter by
// trading voltage and current steps.
func (m *machine) currentComp() {
	s := m.s
	iin := m.t.IIN
	defer func() { s.PrevIin = iin }()

	volStep := func() {
		s.TaVol = mathx.Min(s.TaVol+PDVolStep, s.TaMaxVol)
		s.TaTargetVol = s.TaVol
		s.PrevInc = IncVol
		m.sendPD()
	}

	switch {
	case iin > s.IinCC+iinCCCompOffset:
		m.backOff()

	case iin < s.IinCC-iinCCCompOffset:
		switch {
		case s.TaVol >= s.TaMaxVol:
			if s.TaCur >= s.TaMaxCur {
				m.settleCC()
				return
			}
			s.TaCur = mathx.Min(s.TaCur+PDCurStep, s.TaMaxCur)
			s.PrevInc = IncCur
			m.sendPD()
		case iin > s.PrevIin+iinAdcOffset:
			volStep()
		case s.PrevInc == IncVol:
			if s.TaCur >= s.TaMaxCur || s.TaCur >= s.IinCC+taIinOffset {
				volStep()
				return
			}
			s.TaCur = mathx.Min(s.TaCur+PDCurStep, s.TaMaxCur)
			s.PrevInc = IncCur
			m.sendPD()
		default:
			volStep()
		}

	default:
		s.PrevInc = IncNone
		m.settleCC()
	}
}

// currentCompCP is the constant-power variant used when the voltage
// ceiling is below TaMaxVolCP. When the ceiling binds, iin_cc itself is
// lowered.
func (m *machine) currentCompCP() {
	s := m.s
	iin := m.t.IIN
	defer func() { s.PrevIin = iin }()
	cm := m.cm()

	switch {
	case iin > s.IinCfg+iinCCCompOffset:
		m.backOff()

	case iin < s.IinCC-iinCPLowOffset:
		if s.TaVol < s.TaMaxVol {
			s.TaVol = mathx.Min(s.TaVol+taVolStepAdjCC*cm, s.TaMaxVol)
			s.TaTargetVol = s.TaVol
			m.sendPD()
			return
		}
		if iin >= s.IinCC-iinCCCompOffset {
			m.settleCC()
			return
		}
		if s.TaCur >= s.IinCC/cm || s.TaCur >= s.TaMaxCur {
			s.IinCC -= PDCurStep
			s.TaMaxVol = m.maxVolFor(mathx.FloorStep(s.IinCC, PDCurStep))
			s.TaVol = mathx.Min(s.TaVol+taVolStepAdjCC*cm, s.TaMaxVol)
			s.TaTargetVol = s.TaVol
		} else {
			s.TaCur = mathx.Min(s.TaCur+PDCurStep, s.TaMaxCur)
		}
		m.sendPD()

	default:
		m.settleCC()
	}
}

// voltageComp holds iin at iin_cc by voltage alone, for adapters in
// constant-voltage behaviour or at the current floor.
func (m *machine) voltageComp() {
	s := m.s
	iin := m.t.IIN
	switch {
	case iin > s.IinCC+iinCCCompOffset:
		s.TaVol -= PDVolStep
		m.sendPD()
	case iin < s.IinCC-iinCCCompOffset:
		if s.TaVol >= s.TaMaxVol {
			m.settleCC()
			return
		}
		s.TaVol = mathx.Min(s.TaVol+PDVolStep, s.TaMaxVol)
		m.sendPD()
	default:
		m.settleCC()
	}
}
