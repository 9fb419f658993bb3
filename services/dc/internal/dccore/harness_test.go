package dccore

import (
	"context"
	"testing"

	"directcharge-go/pd"
	"directcharge-go/services/dc/sim"
	"directcharge-go/types"

	"github.com/stretchr/testify/require"
)

// rig drives a session against the simulated plant.
type rig struct {
	t     *testing.T
	s     *Session
	p     *sim.Plant
	res   Result
	ticks int
	log   []Result
	ceil  []ceiling // session ceiling after each logged result
}

type ceiling struct {
	vol, cur int32
}

func newRig(t *testing.T, params Params, cfg sim.Config) *rig {
	t.Helper()
	return &rig{t: t, s: NewSession(params), p: sim.New(cfg)}
}

func (r *rig) start(a AdapterMode) {
	r.t.Helper()
	caps, err := r.p.Sources(context.Background())
	require.NoError(r.t, err)
	res, err := Start(r.s, a, caps)
	require.NoError(r.t, err)
	r.apply(res)
}

// apply executes the effects of one result against the plant.
func (r *rig) apply(res Result) {
	r.t.Helper()
	r.res = res
	r.log = append(r.log, res)
	r.ceil = append(r.ceil, ceiling{vol: r.s.TaMaxVol, cur: r.s.TaMaxCur})
	for _, e := range res.Effects {
		var err error
		switch e.Kind {
		case EffPrepare:
			err = r.p.Prepare()
		case EffEnable:
			err = r.p.Enable(e.On)
		case EffSetInputCurrent:
			err = r.p.SetInputCurrent(e.Value)
		case EffSetFloatVoltage:
			err = r.p.SetFloatVoltage(e.Value)
		case EffSetSwitchFreq:
			err = r.p.SetSwitchFreq(e.Code)
		case EffSetRCPDetect:
			err = r.p.SetRCPDetect(e.On)
		case EffSetWatchdog:
			err = r.p.SetWatchdog(e.On)
		case EffSetOVDelta:
			err = r.p.SetOVDelta(e.Value)
		case EffRequestPower:
			rdo := pd.PPSRequest(e.Power.Object, e.Power.Vol, e.Power.Cur)
			if e.Power.Fixed {
				rdo = pd.FixedRequest(e.Power.Object, e.Power.Cur)
			}
			err = r.p.Request(context.Background(), rdo)
		}
		require.NoError(r.t, err, "effect %s", e.Kind)
	}
}

func (r *rig) sample() Telemetry {
	smp, err := r.p.Sample()
	if err != nil {
		return Telemetry{}
	}
	return Telemetry{
		Valid:   true,
		VIN:     smp.VIN,
		IIN:     smp.IIN,
		VBAT:    smp.VBAT,
		DieTemp: smp.DieTemp,
		Status:  smp.Status,
	}
}

// tick advances the plant by the scheduled delay and runs one step.
func (r *rig) tick() Result {
	r.t.Helper()
	r.p.Advance(r.res.Delay)
	res := Step(r.s, Input{Tel: r.sample()})
	r.ticks++
	r.apply(res)
	return res
}

// runUntil ticks until cond holds, failing after max ticks or on stop.
func (r *rig) runUntil(max int, cond func(*Session, Result) bool) {
	r.t.Helper()
	for i := 0; i < max; i++ {
		res := r.tick()
		if cond(r.s, res) {
			return
		}
		require.False(r.t, res.Stopped, "stopped in %s: %+v", r.s.State, res.Effects)
	}
	r.t.Fatalf("condition not reached after %d ticks, state %s", max, r.s.State)
}

func inState(st State) func(*Session, Result) bool {
	return func(s *Session, _ Result) bool { return s.State == st }
}

func count(log []Result, k EffectKind) int {
	n := 0
	for _, res := range log {
		for _, e := range res.Effects {
			if e.Kind == k {
				n++
			}
		}
	}
	return n
}

func effectsOf(res Result, k EffectKind) []Effect {
	var out []Effect
	for _, e := range res.Effects {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// tel builds a synthetic sample.
func tel(vbat, iin int32, st types.DCStatus) Telemetry {
	return Telemetry{Valid: true, VIN: 9_000_000, IIN: iin, VBAT: vbat, DieTemp: 300, Status: st}
}

const active = types.DCActive | types.DCVinOK
