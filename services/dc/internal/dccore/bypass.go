package dccore

import "directcharge-go/x/mathx"

// checkBypass watches pass-through operation. Only the input-current loop
// is regulated; the battery sets the output.
func (m *machine) checkBypass() {
	s := m.s
	m.setState(BypassMode)
	if ok, _ := m.guard(); !ok {
		return
	}
	if m.serviceRequest() {
		return
	}
	if ccLoop(s, m.t) == loopIin {
		if s.TaCur <= s.IinCC-taCurLowOffset {
			s.TaVol -= PDVolStep
		} else {
			s.TaCur -= PDCurStep
		}
		m.sendPD()
		return
	}
	m.next(taskCheckBypass, BypassPoll)
}

// bypassVol is the adapter voltage for pass-through at the present vbat.
func (m *machine) bypassVol() int32 {
	return mathx.FloorStep(2*m.vbat()*m.cm()+bypassVolOffset, PDVolStep)
}

// dcModeChange completes the switch into bypass once the adapter has
// moved to the pass-through voltage. The charger is disabled here so no
// classification runs.
func (m *machine) dcModeChange() {
	s := m.s
	m.setState(DCModeChange)
	m.emit(Effect{Kind: EffSetRCPDetect, On: false})
	m.setFsw(s.Params.FswCfgByp)
	m.enable(true)
	m.requestDone()
	m.setState(BypassMode)
	m.next(taskCheckBypass, BypassWait)
}

func (m *machine) setNewDCMode(mode DCMode) {
	s := m.s
	switch {
	case mode == DCModeNormal:
		println("[dc] leaving bypass")
		m.enable(false)
		m.emit(Effect{Kind: EffSetRCPDetect, On: true})
		s.DCMode = DCModeNormal
		m.requestDone()
		s.TaCtrl = TaCtrlCurrentLimit
		m.next(taskPresetDC, 0)

	case s.DCMode == DCModeNormal:
		println("[dc] entering", mode.String())
		m.enable(false)
		s.DCMode = mode
		s.TaVol = m.bypassVol()
		m.setState(DCModeChange)
		m.sendPD()

	default:
		// already passing through, only the label changes
		s.DCMode = mode
		m.requestDone()
		m.next(taskCheckBypass, RequestApplied)
	}
}
