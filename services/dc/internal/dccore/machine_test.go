package dccore

import (
	"fmt"
	"testing"

	"directcharge-go/errcode"
	"directcharge-go/pd"
	"directcharge-go/services/dc/sim"
	"directcharge-go/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkBounds asserts every adapter request stays inside the session
// ceiling and on the APDO grid.
func checkBounds(t *testing.T, r *rig) {
	t.Helper()
	for i, res := range r.log {
		reqs := effectsOf(res, EffRequestPower)
		require.LessOrEqual(t, len(reqs), 1, "one adapter request per tick")
		if len(reqs) == 1 && !res.Stopped {
			assert.Equal(t, PDMsgWait, res.Delay)
		}
		c := r.ceil[i]
		for _, e := range reqs {
			assert.LessOrEqual(t, e.Power.Vol, c.vol, "vol above ta_max_vol")
			assert.LessOrEqual(t, e.Power.Cur, c.cur, "cur above ta_max_cur")
			if e.Power.Fixed {
				continue
			}
			assert.GreaterOrEqual(t, e.Power.Vol, int32(TaMinVol))
			assert.Zero(t, e.Power.Vol%PDVolStep, "vol %d", e.Power.Vol)
			assert.Zero(t, e.Power.Cur%PDCurStep, "cur %d", e.Power.Cur)
			assert.GreaterOrEqual(t, e.Power.Cur, int32(TaMinCur))
		}
	}
}

// inCeiling holds after every tick of an active session.
func inCeiling(t *testing.T, s *Session) {
	t.Helper()
	if !s.Active() || s.TaMaxVol == 0 {
		return
	}
	require.LessOrEqual(t, s.TaVol, s.TaMaxVol, "ta_vol in %s", s.State)
	require.LessOrEqual(t, s.TaCur, s.TaMaxCur, "ta_cur in %s", s.State)
}

func TestAPDOChargeToDone(t *testing.T) {
	r := newRig(t, DefaultParams(), sim.DefaultConfig())
	r.start(AdapterAPDO)
	assert.Equal(t, CheckVbat, r.s.State)

	r.runUntil(200, inState(CCMode))
	assert.Equal(t, ChgMode2to1, r.s.ChgMode)
	assert.Equal(t, uint8(3), r.s.TaObject)
	assert.Equal(t, int32(3_000_000), r.s.IinCC)
	assert.LessOrEqual(t, r.s.TaVol, r.s.TaMaxVol)
	assert.LessOrEqual(t, r.s.TaCur, r.s.TaMaxCur)

	snap := r.p.Snapshot()
	assert.True(t, snap.Enabled)
	assert.True(t, snap.Watchdog)
	assert.Equal(t, int32(3_000_000), snap.IinLimit)
	assert.Equal(t, int32(4_400_000), snap.Vfloat)

	r.runUntil(20_000, inState(ChargingDone))
	assert.Equal(t, 1, count(r.log, EffNotifyDone))
	assert.Zero(t, count(r.log, EffNotifyHealth))
	checkBounds(t, r)

	seen := map[State]bool{}
	for _, res := range r.log {
		for _, e := range effectsOf(res, EffNotifyMode) {
			seen[e.State] = true
		}
	}
	for _, st := range []State{CheckVbat, PresetDC, CheckActive, AdjustCC, CCMode, ChargingDone} {
		assert.True(t, seen[st], "never reported %s", st)
	}
	assert.True(t, seen[StartCV] || seen[CVMode])
}

func TestAPDOConvergesToIinCC(t *testing.T) {
	r := newRig(t, DefaultParams(), sim.DefaultConfig())
	r.start(AdapterAPDO)
	r.runUntil(200, inState(CCMode))
	// let the compensator settle on its first poll
	r.runUntil(50, func(s *Session, res Result) bool { return res.Delay == CCPoll })
	smp, err := r.p.Sample()
	require.NoError(t, err)
	assert.InDelta(t, r.s.IinCC, smp.IIN, float64(iinCCCompOffset))
}

func TestConvergenceGrid(t *testing.T) {
	for _, iin := range []int32{2_000_000, 3_000_000} {
		for _, maxVol := range []int32{9_800_000, 10_500_000} {
			for _, rpath := range []int32{50, 100} {
				for _, limit := range []bool{true, false} {
					for _, ocv := range []int32{3_600_000, 3_900_000} {
						name := fmt.Sprintf("iin=%d/max=%d/r=%d/cl=%t/ocv=%d", iin/1000, maxVol/1000, rpath, limit, ocv/1000)
						t.Run(name, func(t *testing.T) {
							p := DefaultParams()
							p.IinCfg = iin
							p.TaMaxVol = maxVol
							cfg := sim.DefaultConfig()
							cfg.RPath = rpath
							cfg.CurrentLimit = limit
							cfg.OCV = ocv
							cfg.Capacity = 2_000_000

							r := newRig(t, p, cfg)
							r.start(AdapterAPDO)
							tickInCeiling := func(max int, done func(*Session, Result) bool) {
								t.Helper()
								for i := 0; i < max; i++ {
									res := r.tick()
									require.False(t, res.Stopped, "stopped in %s", r.s.State)
									inCeiling(t, r.s)
									if done(r.s, res) {
										return
									}
								}
								t.Fatalf("not reached after %d ticks, state %s", max, r.s.State)
							}
							tickInCeiling(200, inState(CCMode))
							tickInCeiling(100, func(_ *Session, res Result) bool { return res.Delay == CCPoll })

							smp, err := r.p.Sample()
							require.NoError(t, err)
							assert.InDelta(t, r.s.IinCC, smp.IIN, float64(iinCCCompOffset))
							checkBounds(t, r)
						})
					}
				}
			}
		}
	}
}

func TestFPDONearestObject(t *testing.T) {
	caps := []pd.PDO{
		pd.PDO(pd.NewFixedPDO(5_000_000, 3_000_000)),
		pd.PDO(pd.NewFixedPDO(12_000_000, 2_000_000)),
	}
	s := NewSession(DefaultParams())
	_, err := Start(s, AdapterFPDO, caps)
	require.NoError(t, err)

	Step(s, Input{Tel: tel(3_800_000, 0, types.DCVinOK|types.DCStandby)})
	res := Step(s, Input{Tel: tel(3_800_000, 0, types.DCVinOK|types.DCStandby)})
	require.False(t, res.Stopped)
	assert.Zero(t, count([]Result{res}, EffNotifyHealth))

	reqs := effectsOf(res, EffRequestPower)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Power.Fixed)
	assert.Equal(t, uint8(2), reqs[0].Power.Object)
	assert.Equal(t, int32(12_000_000), reqs[0].Power.Vol)
	assert.Equal(t, int32(2_000_000), reqs[0].Power.Cur, "limited by the object")
	assert.Equal(t, int32(12_000_000), s.TaMaxVol)
	assert.Equal(t, int32(2_000_000), s.TaMaxCur)
}

func TestFPDOWithoutFixedRestoresNothing(t *testing.T) {
	s := NewSession(DefaultParams())
	ppsOnly := []pd.PDO{pd.PDO(pd.NewPPSPDO(3_300_000, 11_000_000, 3_000_000))}
	_, err := Start(s, AdapterFPDO, ppsOnly)
	require.NoError(t, err)

	Step(s, Input{Tel: tel(3_800_000, 0, types.DCVinOK)})
	res := Step(s, Input{Tel: tel(3_800_000, 0, types.DCVinOK)})
	require.True(t, res.Stopped)
	h := effectsOf(res, EffNotifyHealth)
	require.Len(t, h, 1)
	assert.Equal(t, "no_fpdo", h[0].Reason)
	assert.Empty(t, effectsOf(res, EffSetOVDelta), "OV delta was never widened")

	_, err = Start(s, AdapterFPDO, sim.DefaultSources())
	require.NoError(t, err)
	res = Stop(s)
	assert.Empty(t, effectsOf(res, EffSetOVDelta), "stopped before preset")
}

func TestFPDOCharge(t *testing.T) {
	r := newRig(t, DefaultParams(), sim.DefaultConfig())
	r.start(AdapterFPDO)
	r.runUntil(50, inState(FpdoCVMode))

	snap := r.p.Snapshot()
	assert.Equal(t, uint8(2), snap.Object)
	assert.Equal(t, int32(9_000_000), snap.TaVol)
	assert.Equal(t, int32(40), snap.OVDelta)

	r.runUntil(20_000, func(_ *Session, res Result) bool { return len(effectsOf(res, EffNotifyDone)) > 0 })
	assert.Equal(t, FpdoCVMode, r.s.State)
	assert.Equal(t, 1, count(r.log, EffNotifyDone))

	res := Stop(r.s)
	r.apply(res)
	assert.True(t, res.Stopped)
	assert.Equal(t, int32(30), r.p.Snapshot().OVDelta)
}

func TestStopFromAnyState(t *testing.T) {
	for _, st := range []State{CheckActive, AdjustCC, CCMode} {
		t.Run(st.String(), func(t *testing.T) {
			r := newRig(t, DefaultParams(), sim.DefaultConfig())
			r.start(AdapterAPDO)
			r.runUntil(200, inState(st))

			res := Stop(r.s)
			r.apply(res)
			require.True(t, res.Stopped)
			kinds := make([]EffectKind, 0, len(res.Effects))
			for _, e := range res.Effects {
				kinds = append(kinds, e.Kind)
			}
			assert.Equal(t, []EffectKind{EffEnable, EffSetRCPDetect, EffSetWatchdog, EffNotifyMode}, kinds)
			assert.False(t, r.s.Active())
			assert.False(t, r.p.Snapshot().Enabled)
			assert.False(t, r.p.Snapshot().Watchdog)

			next := Step(r.s, Input{Tel: r.sample()})
			assert.True(t, next.Stopped)
			assert.Empty(t, next.Effects)
		})
	}
}

func TestStartWhileActiveIsBusy(t *testing.T) {
	s := NewSession(DefaultParams())
	_, err := Start(s, AdapterAPDO, sim.DefaultSources())
	require.NoError(t, err)
	_, err = Start(s, AdapterAPDO, sim.DefaultSources())
	assert.ErrorIs(t, err, errcode.Busy)
}

func TestStartRejectsBadParams(t *testing.T) {
	p := DefaultParams()
	p.ChgMode = 3
	s := NewSession(p)
	_, err := Start(s, AdapterAPDO, sim.DefaultSources())
	require.Error(t, err)
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
	assert.ErrorIs(t, err, ErrChgMode)
	assert.False(t, s.Active())
}

func TestFourToOneFallsBack(t *testing.T) {
	p := DefaultParams()
	p.ChgMode = ChgMode4to1
	s := NewSession(p)
	_, err := Start(s, AdapterAPDO, sim.DefaultSources())
	require.NoError(t, err)

	Step(s, Input{Tel: tel(3_800_000, 0, types.DCVinOK|types.DCStandby)})
	res := Step(s, Input{Tel: tel(3_800_000, 0, types.DCVinOK|types.DCStandby)})
	require.False(t, res.Stopped)
	assert.Equal(t, ChgMode2to1, s.ChgMode)
	assert.Equal(t, PresetDC, s.State)
	reqs := effectsOf(res, EffRequestPower)
	require.Len(t, reqs, 1)
	assert.Equal(t, uint8(3), reqs[0].Power.Object)
	assert.LessOrEqual(t, reqs[0].Power.Vol, p.TaMaxVol)
}

func TestNoAPDOIsFatal(t *testing.T) {
	s := NewSession(DefaultParams())
	fixedOnly := []pd.PDO{pd.PDO(pd.NewFixedPDO(5_000_000, 3_000_000))}
	_, err := Start(s, AdapterAPDO, fixedOnly)
	require.NoError(t, err)

	Step(s, Input{Tel: tel(3_800_000, 0, types.DCVinOK)})
	res := Step(s, Input{Tel: tel(3_800_000, 0, types.DCVinOK)})
	require.True(t, res.Stopped)
	h := effectsOf(res, EffNotifyHealth)
	require.Len(t, h, 1)
	assert.Equal(t, types.HealthDCErr, h[0].Health)
	assert.Equal(t, "no_apdo", h[0].Reason)
	assert.Equal(t, ChgModeNone, s.ChgMode)
}

func TestLowVbatWaits(t *testing.T) {
	s := NewSession(DefaultParams())
	_, err := Start(s, AdapterAPDO, sim.DefaultSources())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		res := Step(s, Input{Tel: tel(3_000_000, 0, types.DCVinOK)})
		assert.Equal(t, VbatRecheck, res.Delay)
		assert.Equal(t, CheckVbat, s.State)
	}
}

func TestOCPAverageRetriesThenFails(t *testing.T) {
	s := NewSession(DefaultParams())
	_, err := Start(s, AdapterAPDO, sim.DefaultSources())
	require.NoError(t, err)

	ocp := tel(3_800_000, 0, types.DCVinOK|types.DCOCPAvg)
	var res Result
	retries := 0
	for i := 0; i < 40 && !res.Stopped; i++ {
		res = Step(s, Input{Tel: ocp})
		if res.Outcome == Retryable && !res.Stopped {
			retries++
			en := effectsOf(res, EffEnable)
			require.Len(t, en, 1)
			assert.False(t, en[0].On)
		}
	}
	require.True(t, res.Stopped)
	assert.Equal(t, MaxRetry, retries)
	h := effectsOf(res, EffNotifyHealth)
	require.Len(t, h, 1)
	assert.Equal(t, "ocp_avg", h[0].Reason)
	assert.Equal(t, NoCharging, s.State)
}

func TestReadFailures(t *testing.T) {
	r := newRig(t, DefaultParams(), sim.DefaultConfig())
	r.start(AdapterAPDO)
	r.runUntil(200, inState(CCMode))

	r.p.FailReads(MaxReadFails - 1)
	for i := 0; i < MaxReadFails-1; i++ {
		res := r.tick()
		require.False(t, res.Stopped)
		assert.Equal(t, ReadRetry, res.Delay)
	}
	res := r.tick()
	assert.False(t, res.Stopped, "a good read resets the count")

	r.p.FailReads(MaxReadFails)
	for i := 0; i < MaxReadFails; i++ {
		res = r.tick()
	}
	require.True(t, res.Stopped)
	h := effectsOf(res, EffNotifyHealth)
	require.Len(t, h, 1)
	assert.Equal(t, string(errcode.ReadFailed), h[0].Reason)
}

func TestRetryableInCCFlipsToCV(t *testing.T) {
	r := newRig(t, DefaultParams(), sim.DefaultConfig())
	r.start(AdapterAPDO)
	r.runUntil(200, inState(CCMode))
	require.Equal(t, TaCtrlCurrentLimit, r.s.TaCtrl)

	r.p.Inject(types.DCVinOV)
	require.NoError(t, r.p.Enable(false))
	res := r.tick()
	r.p.Clear(types.DCVinOV)

	assert.Equal(t, Retryable, res.Outcome)
	assert.Equal(t, TaCtrlConstantVoltage, r.s.TaCtrl)
	assert.Equal(t, uint8(1), r.s.Retry)

	r.runUntil(400, inState(CCMode))
	assert.Zero(t, r.s.Retry)

	// regulation is by voltage alone from here
	require.Equal(t, TaCtrlConstantVoltage, r.s.TaCtrl)
	r.runUntil(100, func(s *Session, res Result) bool { return res.Delay == CCPoll })
	inCeiling(t, r.s)
	smp, err := r.p.Sample()
	require.NoError(t, err)
	assert.InDelta(t, r.s.IinCC, smp.IIN, float64(iinCCCompOffset))
	checkBounds(t, r)
}
