package dccore

import "time"

// notifyDone reports a full battery once per session.
func (m *machine) notifyDone() {
	if m.s.doneSent {
		return
	}
	m.s.doneSent = true
	println("[dc] charging done, iin", m.t.IIN, "vbat", m.vbat())
	m.emit(Effect{Kind: EffNotifyDone})
}

// startCV steps the operating point down until no loop is active.
func (m *machine) startCV() {
	s := m.s
	m.setState(StartCV)
	ok, rcp := m.guard()
	if !ok {
		return
	}
	l := cvLoop(s, m.t)
	if rcp {
		l = loopDone
	}

	switch l {
	case loopDone:
		m.notifyDone()
		m.setState(ChargingDone)
		m.next(taskCheckCV, CVPoll)

	case loopChg, loopIin:
		if s.TaCur > TaMinCur {
			s.TaCur -= PDCurStep
		} else {
			s.TaVol -= PDVolStep
		}
		m.sendPD()

	case loopVflt:
		if s.Vfloat >= s.MaxVfloat {
			s.TaVol -= taVolStepPreCVHi * m.cm()
		} else {
			s.TaVol -= taVolStepPreCV * m.cm()
		}
		m.sendPD()

	case loopVinUV:
		m.next(taskStartCV, VinUVRecheck)

	default:
		s.TaTargetVol = s.TaVol
		m.next(taskCheckCV, 0)
	}
}

// checkCV regulates in constant-voltage mode until charge termination.
func (m *machine) checkCV() {
	s := m.s
	if s.State != ChargingDone {
		m.setState(CVMode)
	}
	ok, rcp := m.guard()
	if !ok {
		return
	}
	if m.serviceRequest() {
		return
	}
	l := cvLoop(s, m.t)
	if rcp {
		l = loopDone
	}

	switch l {
	case loopDone:
		if s.State != ChargingDone {
			m.setState(ChargingDone)
		}
		m.notifyDone()
		m.next(taskCheckCV, m.cvPoll())

	case loopChg, loopIin:
		m.setState(CVMode)
		switch {
		case s.TaCur > TaMinCur && s.TaCur <= s.IinCC-taCurLowOffset:
			s.TaVol -= PDVolStep
			s.TaTargetVol = s.TaVol
		case s.TaCur > TaMinCur:
			s.TaCur -= PDCurStep
		default:
			s.TaVol -= PDVolStep
		}
		m.sendPD()

	case loopVflt:
		s.TaVol -= PDVolStep
		s.TaTargetVol = s.TaVol
		m.sendPD()

	case loopVinUV:
		m.next(taskCheckCV, VinUVRecheck)

	default:
		m.next(taskCheckCV, m.cvPoll())
	}
}

func (m *machine) cvPoll() time.Duration {
	s := m.s
	switch {
	case s.Vfloat < s.Params.Step1Vth:
		return s.Params.CVPolling
	case s.decVfloat || s.Vfloat >= s.MaxVfloat:
		return CVPollFast
	}
	return CVPoll
}

// checkWCCV watches a wireless session; the receiver regulates power so
// the loop only reports.
func (m *machine) checkWCCV() {
	s := m.s
	m.setState(WirelessCVMode)
	ok, rcp := m.guard()
	if !ok {
		return
	}
	if m.serviceRequest() {
		return
	}
	l := cvLoop(s, m.t)
	if rcp {
		l = loopDone
	}
	switch l {
	case loopDone:
		m.notifyDone()
		m.next(taskCheckWCCV, CVPoll)
	case loopInactive:
		m.next(taskCheckWCCV, CVPoll)
	default:
		m.next(taskCheckWCCV, VinUVRecheck)
	}
}

// checkFPDO watches a fixed-PDO session. Termination is debounced over
// fpdoDoneCount samples.
func (m *machine) checkFPDO() {
	s := m.s
	m.setState(FpdoCVMode)
	ok, rcp := m.guard()
	if !ok {
		return
	}
	if m.serviceRequest() {
		return
	}
	l := cvLoop(s, m.t)
	if rcp {
		l = loopDone
	}
	if l == loopDone {
		if s.DoneCnt < fpdoDoneCount {
			s.DoneCnt++
			l = loopInactive
		} else {
			s.DoneCnt = 0
		}
	} else {
		s.DoneCnt = 0
	}

	switch l {
	case loopDone:
		m.notifyDone()
		m.next(taskCheckFPDO, RequestApplied)
	case loopInactive:
		m.next(taskCheckFPDO, FpdoCVPoll)
	default:
		m.next(taskCheckFPDO, RequestApplied)
	}
}
