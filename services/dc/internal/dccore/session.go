package dccore

import "directcharge-go/pd"

// RequestKind names the asynchronous request held in a session.
type RequestKind uint8

const (
	ReqNone RequestKind = iota
	ReqInputCurrent
	ReqFloatVoltage
	ReqDCMode
)

func (k RequestKind) String() string {
	switch k {
	case ReqInputCurrent:
		return "input_current"
	case ReqFloatVoltage:
		return "float_voltage"
	case ReqDCMode:
		return "dc_mode"
	}
	return "none"
}

// Request is one asynchronous change of target.
type Request struct {
	Kind  RequestKind
	Value int32 // µA or µV
	Mode  DCMode
}

// Session is the complete state of one direct-charging session. It is
// owned by a single goroutine; only Step, Start, Stop and Submit mutate it.
type Session struct {
	Params Params // baseline for the next Start

	State   State
	Adapter AdapterMode
	ChgMode ChgMode
	DCMode  DCMode

	// Targets.
	IinCfg    int32
	IinCC     int32
	Vfloat    int32
	MaxVfloat int32

	// Adapter operating point and ceiling.
	TaVol       int32
	TaCur       int32
	TaTargetVol int32
	TaMaxVol    int32
	TaMaxCur    int32
	TaMaxPwr    int32
	TaObject    uint8
	TaCtrl      TaCtrl

	// Compensator memory.
	PrevIin  int32
	PrevInc  Inc
	PrevVbat int32

	Retry   uint8
	DoneCnt uint8

	Pending Request

	Fsw uint8 // switching frequency programmed last

	caps []pd.PDO

	task       task
	retState   State // state to resume after a TA adjustment
	newIin     int32
	swFreqStep uint8
	decVfloat  bool
	rcpRecheck bool
	awaitingPD bool
	doneSent   bool
	ovRaised   bool // VIN OV margin widened for a fixed contract
	readFails  uint8
}

// NewSession returns an idle session using p as its baseline.
func NewSession(p Params) *Session {
	s := &Session{Params: p}
	s.reset()
	return s
}

// reset returns every field except Params to the idle baseline.
func (s *Session) reset() {
	p := s.Params
	*s = Session{
		Params:    p,
		State:     NoCharging,
		ChgMode:   ChgModeNone,
		DCMode:    DCModeNormal,
		IinCfg:    p.IinCfg,
		IinCC:     p.IinCfg,
		Vfloat:    p.Vfloat,
		MaxVfloat: p.MaxVfloat,
		TaCtrl:    TaCtrlCurrentLimit,
	}
}

// Active reports whether a session is running.
func (s *Session) Active() bool { return s.State != NoCharging }

// AwaitingPD reports whether the last tick issued an adapter request whose
// effect has not been observed yet.
func (s *Session) AwaitingPD() bool { return s.awaitingPD }

// HasPending reports an accepted request not yet fully applied.
func (s *Session) HasPending() bool { return s.Pending.Kind != ReqNone }

// Caps returns the source capabilities the session negotiates against.
func (s *Session) Caps() []pd.PDO { return s.caps }
