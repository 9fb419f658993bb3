// Package dccore is the direct-charging control loop: a pure state machine
// over a Session that turns telemetry into charger, adapter and upstream
// effects. It performs no I/O and never blocks.
package dccore

import (
	"time"

	"directcharge-go/errcode"
	"directcharge-go/pd"
	"directcharge-go/types"
	"directcharge-go/x/mathx"
)

// machine carries one call's working state.
type machine struct {
	s   *Session
	t   Telemetry
	out Result
}

// Start begins a session against an adapter. caps are the source
// capabilities (ignored for wireless).
func Start(s *Session, adapter AdapterMode, caps []pd.PDO) (Result, error) {
	if s.Active() {
		return Result{}, errcode.Busy
	}
	if err := s.Params.Validate(); err != nil {
		return Result{}, errcode.Wrap(errcode.InvalidParams, "start", err)
	}
	s.reset()
	s.Adapter = adapter
	s.ChgMode = s.Params.ChgMode
	s.caps = append([]pd.PDO(nil), caps...)

	m := &machine{s: s}
	m.setState(CheckVbat)
	m.next(taskCheckVbat, 0)
	return m.out, nil
}

// Stop ends the session from any state and returns the shutdown effects.
// Stopping an idle session returns no effects.
func Stop(s *Session) Result {
	if !s.Active() {
		return Result{Stopped: true}
	}
	m := &machine{s: s}
	m.stop("", "")
	return m.out
}

// Fail stops the session on an error detected outside the core, such as
// a lost adapter link, and reports it upstream.
func Fail(s *Session, reason string) Result {
	if !s.Active() {
		return Result{Stopped: true}
	}
	m := &machine{s: s}
	m.fatal(reason)
	return m.out
}

// Step runs one tick.
func Step(s *Session, in Input) Result {
	if !s.Active() || s.task == taskNone {
		return Result{Stopped: !s.Active()}
	}
	m := &machine{s: s, t: in.Tel}
	s.awaitingPD = false

	if !in.Tel.Valid {
		s.readFails++
		if s.readFails >= MaxReadFails {
			m.fatal(string(errcode.ReadFailed))
			return m.out
		}
		m.out.Delay = ReadRetry
		return m.out
	}
	s.readFails = 0

	m.run()

	// a recheck read is the suspect sample; keep the one before it
	if s.Active() && m.out.Outcome != Recheck {
		s.PrevVbat = m.vbat()
	}
	return m.out
}

func (m *machine) run() {
	switch m.s.task {
	case taskCheckVbat:
		m.checkVbat()
	case taskPresetDC:
		m.presetDC()
	case taskPresetConfig:
		m.presetConfig()
	case taskCheckActive:
		m.checkActive()
	case taskAdjustCC:
		m.adjustCC()
	case taskStartCC:
		m.startCC()
	case taskCheckCC:
		m.checkCC()
	case taskStartCV:
		m.startCV()
	case taskCheckCV:
		m.checkCV()
	case taskAdjustTaVol:
		m.adjustTaVoltage()
	case taskAdjustTaCur:
		m.adjustTaCurrent()
	case taskCheckWCCV:
		m.checkWCCV()
	case taskCheckBypass:
		m.checkBypass()
	case taskDCModeChange:
		m.dcModeChange()
	case taskCheckFPDO:
		m.checkFPDO()
	}
}

// ---------------- helpers ----------------

func (m *machine) emit(e Effect) { m.out.Effects = append(m.out.Effects, e) }

func (m *machine) setState(st State) {
	if m.s.State == st {
		return
	}
	m.s.State = st
	m.emit(Effect{Kind: EffNotifyMode, State: st})
}

func (m *machine) next(t task, d time.Duration) {
	m.s.task = t
	m.out.Delay = d
}

func (m *machine) cm() int32 {
	if m.s.ChgMode == ChgModeNone {
		return 1
	}
	return int32(m.s.ChgMode)
}

func (m *machine) vbat() int32 { return vbatOf(m.s, m.t) }

func (m *machine) enable(on bool) { m.emit(Effect{Kind: EffEnable, On: on}) }

func (m *machine) setIin(uA int32) { m.emit(Effect{Kind: EffSetInputCurrent, Value: uA}) }

func (m *machine) setFsw(code uint8) {
	m.s.Fsw = code
	m.emit(Effect{Kind: EffSetSwitchFreq, Code: code})
}

// programVfloat writes the float register; with a fuel-gauge float the
// register holds the platform default instead.
func (m *machine) programVfloat() {
	v := m.s.Vfloat
	if m.s.Adapter != AdapterFPDO && m.s.Params.FGVfloat {
		v = m.s.Params.DftVfloat
	}
	m.emit(Effect{Kind: EffSetFloatVoltage, Value: v})
}

// requestDone clears the pending request once its effect is applied.
func (m *machine) requestDone() {
	if m.s.Pending.Kind == ReqNone {
		return
	}
	m.out.Applied = m.s.Pending.Kind
	m.s.Pending = Request{}
}

// sendPD quantises the operating point, holds it inside the adapter
// ceiling and issues it. The tick that observes the result runs after
// PDMsgWait and is chosen by the current state.
func (m *machine) sendPD() {
	s := m.s
	s.TaVol = mathx.FloorStep(s.TaVol, PDVolStep)
	s.TaCur = mathx.FloorStep(s.TaCur, PDCurStep)
	if s.TaMaxCur > 0 && s.TaCur > s.TaMaxCur {
		s.TaCur = mathx.FloorStep(s.TaMaxCur, PDCurStep)
	}
	fixed := s.Adapter == AdapterFPDO
	if !fixed && s.TaCur < TaMinCur {
		s.TaCur = TaMinCur
	}
	if s.TaMaxVol > 0 {
		s.TaVol = mathx.Clamp(s.TaVol, TaMinVol, s.TaMaxVol)
	}
	m.emit(Effect{Kind: EffRequestPower, Power: PowerRequest{
		Vol:    s.TaVol,
		Cur:    s.TaCur,
		Object: s.TaObject,
		Fixed:  fixed,
	}})
	s.awaitingPD = true
	m.next(taskAfterPD(s.State), PDMsgWait)
}

// maxVolFor derives the voltage ceiling from the power budget at input
// current iin, capped by the platform ceiling for the charge mode.
func (m *machine) maxVolFor(iin int32) int32 {
	s := m.s
	ceiling := s.Params.TaMaxVol * m.cm()
	ma := int64(iin) / int64(m.cm()) / 1000
	if ma <= 0 || s.TaMaxPwr <= 0 {
		return ceiling
	}
	v := int32(int64(s.TaMaxPwr) / ma * 1000)
	return mathx.Min(mathx.FloorStep(v, PDVolStep), ceiling)
}

// taCurFor is the adapter current that yields input current iin.
func (m *machine) taCurFor(iin int32) int32 {
	return mathx.FloorStep(mathx.FloorStep(iin, PDCurStep)/m.cm(), PDCurStep)
}

// presetVol is the starting voltage for a charge-pump ratio at vbat.
func (m *machine) presetVol() int32 {
	cm := m.cm()
	v := mathx.Max(taVolPresetFloor*cm, 2*m.vbat()*cm+taVolPreOffset)
	return mathx.FloorStep(v, PDVolStep)
}

// targetVol is the start-CC ramp target from the float margin.
func (m *machine) targetVol() int32 {
	s := m.s
	v := s.TaVol + (s.Vfloat-m.vbat())*2*m.cm() + taTargetOffset
	v = mathx.FloorStep(v, PDVolStep)
	return mathx.Min(v, s.TaMaxVol)
}

// ---------------- error policy ----------------

// guard classifies the current sample and applies the retry policy. It
// reports whether the caller continues, and whether RCP signalled done.
func (m *machine) guard() (cont bool, rcpDone bool) {
	s := m.s
	out, reason := Classify(s, m.t)
	m.out.Outcome = out
	s.rcpRecheck = false
	switch out {
	case Ok:
		return true, false
	case DoneByRCP:
		return true, true
	case Recheck:
		s.rcpRecheck = true
		m.out.Delay = RCPRecheck
		return false, false
	case Retryable:
		m.retry(reason)
		return false, false
	}
	m.fatal(reason)
	return false, false
}

func (m *machine) retry(reason string) {
	s := m.s
	if s.Retry >= MaxRetry {
		m.fatal(reason)
		return
	}
	s.Retry++
	println("[dc] retry", s.Retry, reason, "in", s.State.String())
	m.enable(false)
	if s.State == CCMode && s.TaCtrl == TaCtrlCurrentLimit {
		s.TaCtrl = TaCtrlConstantVoltage
	}
	m.next(taskPresetDC, 0)
}

// fatal stops the session and reports the error upstream once.
func (m *machine) fatal(reason string) {
	println("[dc] stop on error:", reason, "in", m.s.State.String())
	m.stop(types.HealthDCErr, reason)
}

func (m *machine) stop(health, reason string) {
	s := m.s
	m.enable(false)
	m.emit(Effect{Kind: EffSetRCPDetect, On: true})
	m.emit(Effect{Kind: EffSetWatchdog, On: false})
	if s.ovRaised {
		m.emit(Effect{Kind: EffSetOVDelta, Value: 30})
	}
	s.reset()
	m.emit(Effect{Kind: EffNotifyMode, State: NoCharging})
	if health != "" {
		m.emit(Effect{Kind: EffNotifyHealth, Health: health, Reason: reason})
	}
	m.out.Stopped = true
	m.out.Delay = 0
}
