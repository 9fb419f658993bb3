package dc

import (
	"context"
	"io"
	"math/rand"
	"time"

	"directcharge-go/errcode"
	"directcharge-go/pd"
	"directcharge-go/services/dc/internal/dccore"
	"directcharge-go/types"

	"github.com/oklog/ulid/v2"
)

// Params is the platform configuration of one charger.
type Params = dccore.Params

func DefaultParams() Params { return dccore.DefaultParams() }

// reason reported when a charger register write fails mid-session
const reasonWriteFailed = "write_failed"

// engine owns one session and executes its effects against the ports.
// It is not safe for concurrent use; the runner's worker and Simulate
// are its only owners.
type engine struct {
	name  string
	chg   Charger
	ta    Adapter
	gauge Gauge
	pub   Publisher
	now   func() time.Time

	s    *dccore.Session
	next *Params // applied at the next start
	id   string

	rdo      pd.RequestDO
	haveRDO  bool
	sent     bool // a power request went out on the last call
	retryRDO bool // the last power request met a busy port
	wdt      bool
	last     dccore.Telemetry

	entropy io.Reader
}

func newEngine(name string, p Params, chg Charger, ta Adapter, g Gauge, pub Publisher, now func() time.Time) *engine {
	if pub == nil {
		pub = nopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &engine{
		name:    name,
		chg:     chg,
		ta:      ta,
		gauge:   g,
		pub:     pub,
		now:     now,
		s:       dccore.NewSession(p),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(now().UnixNano())), 0),
	}
}

func (e *engine) ts() int64 { return e.now().UnixMilli() }

func parseAdapter(s string) (dccore.AdapterMode, error) {
	switch s {
	case "", types.AdapterAPDO:
		return dccore.AdapterAPDO, nil
	case types.AdapterFPDO:
		return dccore.AdapterFPDO, nil
	case types.AdapterWireless:
		return dccore.AdapterWireless, nil
	}
	return 0, errcode.InvalidParams
}

func parseDCMode(s string) (dccore.DCMode, error) {
	switch s {
	case types.DCModeNormal:
		return dccore.DCModeNormal, nil
	case types.DCModeBypass2to1:
		return dccore.DCModeBypass2to1, nil
	case types.DCModeBypass4to1:
		return dccore.DCModeBypass4to1, nil
	}
	return 0, errcode.InvalidParams
}

// start opens a session. Source capabilities are fetched here, outside
// the core, so the core never blocks on the port.
func (e *engine) start(ctx context.Context, adapter string) (dccore.Result, error) {
	mode, err := parseAdapter(adapter)
	if err != nil {
		return dccore.Result{}, err
	}
	if e.s.Active() {
		return dccore.Result{}, errcode.Busy
	}
	if e.next != nil {
		e.s = dccore.NewSession(*e.next)
		e.next = nil
	}
	var caps []pd.PDO
	if mode != dccore.AdapterWireless {
		if e.ta == nil {
			return dccore.Result{}, errcode.Unsupported
		}
		caps, err = e.ta.Sources(ctx)
		if err != nil {
			return dccore.Result{}, errcode.Wrap(errcode.Of(err), "sources", err)
		}
	}
	res, err := dccore.Start(e.s, mode, caps)
	if err != nil {
		return res, err
	}
	e.id = ulid.MustNew(ulid.Timestamp(e.now()), e.entropy).String()
	e.haveRDO, e.retryRDO = false, false
	println("[dc]", e.name, "session", e.id, "start", mode.String())
	e.pub.Health(types.DCHealth{Code: types.HealthGood, TS: e.ts()})
	e.pub.Event(types.DCEvent{Kind: types.EventStarted, Session: e.id, Detail: mode.String(), TS: e.ts()})
	return e.exec(ctx, res), nil
}

func (e *engine) stop(ctx context.Context) dccore.Result {
	return e.exec(ctx, dccore.Stop(e.s))
}

func (e *engine) submit(r dccore.Request) error {
	return dccore.Submit(e.s, r)
}

// setParams replaces the baseline now when idle, else at the next start.
func (e *engine) setParams(p Params) error {
	if err := p.Validate(); err != nil {
		return errcode.Wrap(errcode.InvalidParams, "params", err)
	}
	if e.s.Active() {
		e.next = &p
		return nil
	}
	e.s = dccore.NewSession(p)
	e.next = nil
	return nil
}

// sample reads the charger and, when present, the gauge.
func (e *engine) sample() dccore.Telemetry {
	smp, err := e.chg.Sample()
	if err != nil {
		return dccore.Telemetry{}
	}
	t := dccore.Telemetry{
		Valid:   true,
		VIN:     smp.VIN,
		IIN:     smp.IIN,
		VBAT:    smp.VBAT,
		DieTemp: smp.DieTemp,
		Status:  smp.Status,
	}
	if e.gauge != nil {
		if v, err := e.gauge.VBAT(); err == nil {
			t.GaugeVBAT = v
		}
	}
	return t
}

// step runs one tick: a held busy request goes out first, then a fresh
// sample feeds the core.
func (e *engine) step(ctx context.Context) dccore.Result {
	e.sent = false
	if e.retryRDO {
		if res, failed := e.retryPower(ctx); failed {
			return res
		}
	}
	if !e.s.Active() {
		return dccore.Result{Stopped: true}
	}
	t := e.sample()
	res := e.exec(ctx, dccore.Step(e.s, dccore.Input{Tel: t}))
	if t.Valid {
		e.last = t
		e.publishValue()
	}
	return res
}

// exec runs every effect of res in order and reports upstream. A lost
// adapter or a failed register write ends the session; the stop effects
// are appended to the returned result.
func (e *engine) exec(ctx context.Context, res dccore.Result) dccore.Result {
	var fail string
	for _, ef := range res.Effects {
		if fail != "" && ef.Kind < dccore.EffNotifyMode {
			continue
		}
		var err error
		switch ef.Kind {
		case dccore.EffPrepare:
			err = e.chg.Prepare()
		case dccore.EffEnable:
			err = e.chg.Enable(ef.On)
		case dccore.EffSetInputCurrent:
			err = e.chg.SetInputCurrent(ef.Value)
		case dccore.EffSetFloatVoltage:
			err = e.chg.SetFloatVoltage(ef.Value)
		case dccore.EffSetSwitchFreq:
			err = e.chg.SetSwitchFreq(ef.Code)
		case dccore.EffSetRCPDetect:
			err = e.chg.SetRCPDetect(ef.On)
		case dccore.EffSetWatchdog:
			err = e.chg.SetWatchdog(ef.On)
			if err == nil {
				e.wdt = ef.On
			}
		case dccore.EffSetOVDelta:
			err = e.chg.SetOVDelta(ef.Value)
		case dccore.EffRequestPower:
			if reason := e.requestPower(ctx, ef.Power); reason != "" {
				fail = reason
			}
			continue
		case dccore.EffNotifyMode:
			e.notifyMode(ef.State)
		case dccore.EffNotifyDone:
			println("[dc]", e.name, "session", e.id, "done")
			e.pub.Event(types.DCEvent{Kind: types.EventDone, Session: e.id, TS: e.ts()})
		case dccore.EffNotifyHealth:
			e.pub.Health(types.DCHealth{Code: ef.Health, Reason: ef.Reason, TS: e.ts()})
		}
		if err != nil {
			println("[dc]", e.name, ef.Kind.String(), "failed:", err.Error())
			if e.s.Active() && fail == "" {
				fail = reasonWriteFailed
			}
		}
	}
	if fail != "" && e.s.Active() {
		stop := e.exec(ctx, dccore.Fail(e.s, fail))
		res.Effects = append(res.Effects, stop.Effects...)
		res.Stopped, res.Delay = true, 0
	}
	return res
}

// requestPower encodes and sends one request data object. It returns a
// stop reason when the contract is gone.
func (e *engine) requestPower(ctx context.Context, p dccore.PowerRequest) string {
	rdo := pd.PPSRequest(p.Object, p.Vol, p.Cur)
	if p.Fixed {
		rdo = pd.FixedRequest(p.Object, p.Cur)
	}
	e.rdo, e.haveRDO = rdo, true
	e.sent = true
	err := e.ta.Request(ctx, rdo)
	switch errcode.Of(err) {
	case errcode.OK:
		return ""
	case errcode.Busy:
		e.retryRDO = true
		return ""
	}
	return string(errcode.Of(err))
}

// retryPower re-sends a request the port refused as busy. A second
// refusal ends the session.
func (e *engine) retryPower(ctx context.Context) (dccore.Result, bool) {
	e.retryRDO = false
	if !e.s.Active() || !e.haveRDO {
		return dccore.Result{}, false
	}
	err := e.ta.Request(ctx, e.rdo)
	if err == nil {
		e.sent = true
		return dccore.Result{}, false
	}
	println("[dc]", e.name, "power request retry failed:", err.Error())
	return e.exec(ctx, dccore.Fail(e.s, string(errcode.Of(err)))), true
}

// keepalive re-sends the last PPS request so the source does not drop
// the contract. It is skipped while a request is still being observed.
func (e *engine) keepalive(ctx context.Context) dccore.Result {
	e.sent = false
	if !e.s.Active() || e.s.Adapter != dccore.AdapterAPDO || !e.haveRDO || e.s.AwaitingPD() || e.retryRDO {
		return dccore.Result{}
	}
	e.sent = true
	err := e.ta.Request(ctx, e.rdo)
	switch errcode.Of(err) {
	case errcode.OK:
		return dccore.Result{}
	case errcode.Busy:
		e.retryRDO = true
		return dccore.Result{}
	}
	return e.exec(ctx, dccore.Fail(e.s, string(errcode.Of(err))))
}

// kick refreshes the charger watchdog when it is armed.
func (e *engine) kick() {
	if !e.wdt || !e.s.Active() {
		return
	}
	if err := e.chg.KickWatchdog(); err != nil {
		println("[dc]", e.name, "watchdog kick failed:", err.Error())
	}
}

func (e *engine) state() types.DCState {
	st := types.DCState{
		State:   e.s.State.String(),
		DCMode:  e.s.DCMode.String(),
		ChgMode: uint8(e.s.ChgMode),
		Retry:   e.s.Retry,
		TS:      e.ts(),
	}
	if e.s.Active() {
		st.Session = e.id
		st.Adapter = e.s.Adapter.String()
	}
	return st
}

func (e *engine) notifyMode(st dccore.State) {
	e.pub.State(e.state())
	if st != dccore.NoCharging {
		return
	}
	println("[dc]", e.name, "session", e.id, "stopped")
	e.pub.Event(types.DCEvent{Kind: types.EventStopped, Session: e.id, TS: e.ts()})
	e.id = ""
	e.haveRDO, e.retryRDO, e.wdt = false, false, false
}

func (e *engine) value() types.DCValue {
	t := e.last
	return types.DCValue{
		VIN_uV:     t.VIN,
		IIN_uA:     t.IIN,
		VBAT_uV:    t.VBAT,
		DieTemp_dC: t.DieTemp,
		TaVol_uV:   e.s.TaVol,
		TaCur_uA:   e.s.TaCur,
		TaMaxV_uV:  e.s.TaMaxVol,
		IinCC_uA:   e.s.IinCC,
		Vfloat_uV:  e.s.Vfloat,
		Status:     t.Status,
		TS:         e.ts(),
	}
}

func (e *engine) publishValue() { e.pub.Value(e.value()) }
