package dc

import (
	"context"
	"time"

	"directcharge-go/errcode"
	"directcharge-go/services/dc/internal/dccore"
	"directcharge-go/services/dc/sim"
	"directcharge-go/types"
)

// Action is a request injected into a simulation at a given time.
type Action struct {
	At    time.Duration `yaml:"at"`
	Verb  string        `yaml:"verb"` // set_input_current, set_float_voltage, set_dc_mode, stop, detach
	Value int32         `yaml:"value,omitempty"`
	Mode  string        `yaml:"mode,omitempty"`
}

// Scenario is one simulated session.
type Scenario struct {
	Adapter string        `yaml:"adapter"`
	Params  Params        `yaml:"params"`
	Plant   sim.Config    `yaml:"plant"`
	Limit   time.Duration `yaml:"limit"` // simulated time cap
	// StopOnDone ends the run at the first completion.
	StopOnDone bool     `yaml:"stop_on_done"`
	Actions    []Action `yaml:"actions"`

	Keepalive time.Duration `yaml:"keepalive"`
	Watchdog  time.Duration `yaml:"watchdog"`
}

func DefaultScenario() Scenario {
	return Scenario{
		Adapter:    types.AdapterAPDO,
		Params:     DefaultParams(),
		Plant:      sim.DefaultConfig(),
		Limit:      4 * time.Hour,
		StopOnDone: true,
		Keepalive:  10 * time.Second,
		Watchdog:   30 * time.Second,
	}
}

// maxTicks bounds a simulation that makes no progress in time.
const maxTicks = 500_000

// TraceRow is one tick of a simulation.
type TraceRow struct {
	At     time.Duration
	State  string
	TaVol  int32
	TaCur  int32
	IIN    int32
	VBAT   int32
	IinCC  int32
	Status types.DCStatus
	Note   string
}

// Trace is the outcome of Simulate.
type Trace struct {
	Rows     []TraceRow
	Elapsed  time.Duration
	Done     bool
	Health   types.DCHealth
	Requests int // power requests seen by the plant
}

// notes is a Publisher that turns reports into trace notes.
type notes struct {
	pending []string
	health  types.DCHealth
	done    bool
}

func (n *notes) State(types.DCState) {}
func (n *notes) Value(types.DCValue) {}
func (n *notes) Health(h types.DCHealth) {
	n.health = h
	if h.Code != types.HealthGood {
		n.pending = append(n.pending, h.Code+":"+h.Reason)
	}
}
func (n *notes) Event(e types.DCEvent) {
	if e.Kind == types.EventDone {
		n.done = true
	}
	if e.Kind != types.EventStarted {
		n.pending = append(n.pending, e.Kind)
	}
}

func (n *notes) take() string {
	if len(n.pending) == 0 {
		return ""
	}
	s := n.pending[0]
	for _, p := range n.pending[1:] {
		s += " " + p
	}
	n.pending = n.pending[:0]
	return s
}

// Simulate runs a scenario against the plant model in virtual time. It
// uses the same engine as the Runner, ticking as fast as the core asks.
func Simulate(ctx context.Context, sc Scenario) (Trace, error) {
	if sc.Limit <= 0 {
		sc.Limit = DefaultScenario().Limit
	}
	if sc.Keepalive <= 0 {
		sc.Keepalive = 10 * time.Second
	}
	if sc.Watchdog <= 0 {
		sc.Watchdog = 30 * time.Second
	}
	if err := sc.Params.Validate(); err != nil {
		return Trace{}, errcode.Wrap(errcode.InvalidParams, "simulate", err)
	}

	plant := sim.New(sc.Plant)
	if sc.Adapter == types.AdapterWireless {
		plant.SetSupply(9_000_000, 1_500_000)
	}
	base := time.Unix(0, 0)
	var now time.Duration
	clock := func() time.Time { return base.Add(now) }

	n := &notes{}
	e := newEngine("sim", sc.Params, plant, plant, plant, n, clock)

	var tr Trace
	record := func(note string) {
		t := e.last
		tr.Rows = append(tr.Rows, TraceRow{
			At:     now,
			State:  e.s.State.String(),
			TaVol:  e.s.TaVol,
			TaCur:  e.s.TaCur,
			IIN:    t.IIN,
			VBAT:   t.VBAT,
			IinCC:  e.s.IinCC,
			Status: t.Status,
			Note:   note,
		})
	}

	res, err := e.start(ctx, sc.Adapter)
	if err != nil {
		return tr, err
	}
	record(n.take())

	actions := sc.Actions
	lastSend, lastKick := now, now
	for ticks := 0; !res.Stopped && e.s.Active() && now < sc.Limit && ticks < maxTicks; ticks++ {
		if err := ctx.Err(); err != nil {
			return tr, err
		}
		delay := res.Delay
		if e.retryRDO && delay > 0 {
			// the port is retried before the next tick
			delay = 100 * time.Millisecond
		}
		plant.Advance(delay)
		now += delay

		if now-lastKick >= sc.Watchdog {
			e.kick()
			lastKick = now
		}
		if now-lastSend >= sc.Keepalive {
			if r := e.keepalive(ctx); r.Stopped {
				res = r
				record(n.take())
				break
			}
			lastSend = now
		}

		var note string
		for len(actions) > 0 && actions[0].At <= now {
			a := actions[0]
			actions = actions[1:]
			note = joinNote(note, apply(ctx, e, plant, a))
		}
		if !e.s.Active() {
			record(joinNote(note, n.take()))
			break
		}

		res = e.step(ctx)
		if e.sent {
			lastSend = now
		}
		record(joinNote(note, n.take()))
		if n.done && sc.StopOnDone {
			break
		}
	}

	tr.Elapsed = now
	tr.Done = n.done
	tr.Health = n.health
	tr.Requests = plant.Snapshot().Requests
	return tr, nil
}

// apply injects one scripted action and returns its trace note.
func apply(ctx context.Context, e *engine, plant *sim.Plant, a Action) string {
	var err error
	switch a.Verb {
	case "set_input_current":
		err = e.submit(dccore.Request{Kind: dccore.ReqInputCurrent, Value: a.Value})
	case "set_float_voltage":
		err = e.submit(dccore.Request{Kind: dccore.ReqFloatVoltage, Value: a.Value})
	case "set_dc_mode":
		var m dccore.DCMode
		if m, err = parseDCMode(a.Mode); err == nil {
			err = e.submit(dccore.Request{Kind: dccore.ReqDCMode, Mode: m})
		}
	case "stop":
		e.stop(ctx)
	case "detach":
		plant.Detach()
	default:
		err = errcode.Unsupported
	}
	if err != nil {
		return a.Verb + ": " + string(errcode.Of(err))
	}
	return a.Verb
}

func joinNote(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
