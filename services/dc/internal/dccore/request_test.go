package dccore

import (
	"testing"

	"directcharge-go/errcode"
	"directcharge-go/services/dc/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitValidation(t *testing.T) {
	s := NewSession(DefaultParams())

	assert.ErrorIs(t, Submit(s, Request{Kind: ReqInputCurrent, Value: 100_000}), errcode.InvalidParams)
	assert.ErrorIs(t, Submit(s, Request{Kind: ReqFloatVoltage, Value: 4_500_000}), errcode.InvalidParams)
	assert.ErrorIs(t, Submit(s, Request{Kind: ReqFloatVoltage, Value: 3_000_000}), errcode.InvalidParams)
	assert.ErrorIs(t, Submit(s, Request{}), errcode.InvalidParams)
	assert.ErrorIs(t, Submit(s, Request{Kind: ReqDCMode, Mode: DCModeBypass2to1}), errcode.NotCharging)
}

func TestSubmitWhileIdleSetsBaseline(t *testing.T) {
	s := NewSession(DefaultParams())
	require.NoError(t, Submit(s, Request{Kind: ReqInputCurrent, Value: 2_000_000}))
	require.NoError(t, Submit(s, Request{Kind: ReqFloatVoltage, Value: 4_350_000}))
	assert.False(t, s.HasPending())
	assert.Equal(t, int32(2_000_000), s.Params.IinCfg)
	assert.Equal(t, int32(4_350_000), s.Params.Vfloat)

	_, err := Start(s, AdapterAPDO, sim.DefaultSources())
	require.NoError(t, err)
	assert.Equal(t, int32(2_000_000), s.IinCfg)
	assert.Equal(t, int32(4_350_000), s.Vfloat)

	// before preset the value is taken directly
	require.NoError(t, Submit(s, Request{Kind: ReqInputCurrent, Value: 2_500_000}))
	assert.False(t, s.HasPending())
	assert.Equal(t, int32(2_500_000), s.IinCfg)
	assert.Equal(t, int32(2_000_000), s.Params.IinCfg)
}

func TestSubmitRefusedWhileTransient(t *testing.T) {
	s := NewSession(DefaultParams())
	s.Adapter = AdapterAPDO
	for _, st := range []State{PresetDC, CheckActive, AdjustCC, StartCC, StartCV, DCModeChange, AdjustTaVol, AdjustTaCur} {
		s.State = st
		assert.ErrorIs(t, Submit(s, Request{Kind: ReqInputCurrent, Value: 2_000_000}), errcode.Busy, st.String())
	}
	assert.False(t, s.HasPending())
}

func TestSubmitHoldsOneRequest(t *testing.T) {
	s := NewSession(DefaultParams())
	s.Adapter = AdapterAPDO
	s.State = CCMode

	require.NoError(t, Submit(s, Request{Kind: ReqInputCurrent, Value: 2_000_000}))
	assert.ErrorIs(t, Submit(s, Request{Kind: ReqFloatVoltage, Value: 4_300_000}), errcode.Busy)
	assert.ErrorIs(t, Submit(s, Request{Kind: ReqDCMode, Mode: DCModeBypass2to1}), errcode.Busy)
	assert.Equal(t, ReqInputCurrent, s.Pending.Kind)

	// asking for the current mode is a no-op even while busy
	assert.NoError(t, Submit(s, Request{Kind: ReqDCMode, Mode: DCModeNormal}))
}

func TestSubmitDCModeNeedsAPDO(t *testing.T) {
	s := NewSession(DefaultParams())
	s.State = FpdoCVMode
	s.Adapter = AdapterFPDO
	assert.ErrorIs(t, Submit(s, Request{Kind: ReqDCMode, Mode: DCModeBypass2to1}), errcode.Unsupported)
	s.Adapter = AdapterWireless
	s.State = WirelessCVMode
	assert.ErrorIs(t, Submit(s, Request{Kind: ReqDCMode, Mode: DCModeBypass2to1}), errcode.Unsupported)
}

// ccRig returns a session regulating in CC mode with its first poll done.
func ccRig(t *testing.T) *rig {
	r := newRig(t, DefaultParams(), sim.DefaultConfig())
	r.start(AdapterAPDO)
	r.runUntil(200, inState(CCMode))
	r.runUntil(50, func(_ *Session, res Result) bool { return res.Delay == CCPoll })
	return r
}

func applied(k RequestKind) func(*Session, Result) bool {
	return func(_ *Session, res Result) bool { return res.Applied == k }
}

func TestLowerIinSameFrequency(t *testing.T) {
	r := ccRig(t)
	require.NoError(t, Submit(r.s, Request{Kind: ReqInputCurrent, Value: 2_000_000}))
	r.res.Delay = 0

	r.runUntil(20, applied(ReqInputCurrent))
	assert.Equal(t, CCMode, r.s.State)
	assert.False(t, r.s.HasPending())
	assert.Equal(t, int32(2_000_000), r.s.IinCC)
	assert.Equal(t, int32(2_000_000), r.s.IinCfg)
	assert.Equal(t, int32(2_000_000), r.s.TaCur)
	assert.Equal(t, int32(2_000_000), r.p.Snapshot().IinLimit)
	assert.Equal(t, uint8(3), r.p.Snapshot().Fsw)

	r.runUntil(50, func(_ *Session, res Result) bool { return res.Delay == CCPoll })
	smp, err := r.p.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 2_000_000, smp.IIN, float64(iinCCCompOffset))
	checkBounds(t, r)
}

func TestLowerIinAcrossFrequency(t *testing.T) {
	r := ccRig(t)
	require.NoError(t, Submit(r.s, Request{Kind: ReqInputCurrent, Value: 1_200_000}))
	r.res.Delay = 0

	r.runUntil(40, applied(ReqInputCurrent))
	assert.Equal(t, CCMode, r.s.State)
	assert.Equal(t, int32(1_200_000), r.s.IinCC)
	snap := r.p.Snapshot()
	assert.Equal(t, uint8(0), snap.Fsw, "low-current frequency")
	assert.Equal(t, int32(1_200_000), snap.IinLimit)
	assert.True(t, snap.Enabled)
	assert.Zero(t, r.s.swFreqStep)
	checkBounds(t, r)
}

func TestRaiseIinRepresets(t *testing.T) {
	r := ccRig(t)
	require.NoError(t, Submit(r.s, Request{Kind: ReqInputCurrent, Value: 2_000_000}))
	r.res.Delay = 0
	r.runUntil(20, applied(ReqInputCurrent))
	r.runUntil(50, func(_ *Session, res Result) bool { return res.Delay == CCPoll })

	require.NoError(t, Submit(r.s, Request{Kind: ReqInputCurrent, Value: 2_500_000}))
	r.res.Delay = 0
	r.runUntil(20, applied(ReqInputCurrent))
	assert.Equal(t, AdjustCC, r.s.State)
	assert.Equal(t, int32(2_500_000), r.s.IinCC)
	assert.Equal(t, int32(2_500_000), r.p.Snapshot().IinLimit)

	r.runUntil(200, inState(CCMode))
	checkBounds(t, r)
}

func TestRaiseIinCappedByAdapter(t *testing.T) {
	p := DefaultParams()
	p.IinCfg = 2_000_000
	r := newRig(t, p, sim.DefaultConfig())
	r.start(AdapterAPDO)
	r.runUntil(200, inState(CCMode))
	require.Equal(t, int32(2_000_000), r.s.TaMaxCur)

	require.NoError(t, Submit(r.s, Request{Kind: ReqInputCurrent, Value: 2_500_000}))
	r.res.Delay = 0
	r.runUntil(20, applied(ReqInputCurrent))
	assert.Equal(t, int32(2_000_000), r.s.IinCC, "held at the negotiated object current")
}

func TestLowerVfloatEntersCV(t *testing.T) {
	r := ccRig(t)
	require.NoError(t, Submit(r.s, Request{Kind: ReqFloatVoltage, Value: 4_300_000}))
	r.res.Delay = 0

	res := r.tick()
	assert.Equal(t, ReqFloatVoltage, res.Applied)
	assert.Equal(t, StartCV, r.s.State)
	assert.True(t, r.s.decVfloat)
	assert.Equal(t, int32(4_300_000), r.p.Snapshot().Vfloat)
}

func TestRaiseVfloatReadjusts(t *testing.T) {
	p := DefaultParams()
	p.Vfloat = 4_300_000
	r := newRig(t, p, sim.DefaultConfig())
	r.start(AdapterAPDO)
	r.runUntil(200, inState(CCMode))

	require.NoError(t, Submit(r.s, Request{Kind: ReqFloatVoltage, Value: 4_400_000}))
	r.res.Delay = 0
	r.runUntil(5, applied(ReqFloatVoltage))
	assert.Equal(t, AdjustCC, r.s.State)
	assert.Equal(t, int32(4_400_000), r.s.Vfloat)
	assert.Equal(t, int32(4_400_000), r.p.Snapshot().Vfloat)
	assert.False(t, r.s.decVfloat)
}

func TestBypassRoundTrip(t *testing.T) {
	r := ccRig(t)
	require.NoError(t, Submit(r.s, Request{Kind: ReqDCMode, Mode: DCModeBypass2to1}))
	r.res.Delay = 0

	res := r.tick()
	assert.Equal(t, DCModeChange, r.s.State)
	assert.False(t, r.p.Snapshot().Enabled)
	assert.Len(t, effectsOf(res, EffRequestPower), 1)

	res = r.tick()
	assert.Equal(t, ReqDCMode, res.Applied)
	assert.Equal(t, BypassMode, r.s.State)
	assert.Equal(t, DCModeBypass2to1, r.s.DCMode)
	snap := r.p.Snapshot()
	assert.False(t, snap.RCPDetect)
	assert.True(t, snap.Enabled)
	assert.Equal(t, DefaultParams().FswCfgByp, snap.Fsw)

	res = r.tick()
	assert.Equal(t, BypassMode, r.s.State)
	assert.Equal(t, BypassPoll, res.Delay)

	require.NoError(t, Submit(r.s, Request{Kind: ReqDCMode, Mode: DCModeNormal}))
	r.res.Delay = 0
	res = r.tick()
	assert.Equal(t, ReqDCMode, res.Applied)
	assert.Equal(t, DCModeNormal, r.s.DCMode)
	assert.True(t, r.p.Snapshot().RCPDetect)

	r.runUntil(200, inState(CCMode))
	checkBounds(t, r)
}

func TestBypassInputCurrent(t *testing.T) {
	r := ccRig(t)
	require.NoError(t, Submit(r.s, Request{Kind: ReqDCMode, Mode: DCModeBypass2to1}))
	r.res.Delay = 0
	r.runUntil(5, inState(BypassMode))
	r.tick()

	require.NoError(t, Submit(r.s, Request{Kind: ReqInputCurrent, Value: 1_500_000}))
	r.res.Delay = 0
	res := r.tick()
	assert.Equal(t, ReqInputCurrent, res.Applied)
	assert.Equal(t, BypassMode, r.s.State)
	assert.Equal(t, int32(1_500_000), r.s.TaCur)
	assert.Equal(t, int32(1_500_000), r.p.Snapshot().IinLimit)
}

func TestFPDORequests(t *testing.T) {
	r := newRig(t, DefaultParams(), sim.DefaultConfig())
	r.start(AdapterFPDO)
	r.runUntil(50, inState(FpdoCVMode))

	require.NoError(t, Submit(r.s, Request{Kind: ReqInputCurrent, Value: 2_000_000}))
	r.res.Delay = 0
	res := r.tick()
	assert.Equal(t, ReqInputCurrent, res.Applied)
	assert.Equal(t, RequestApplied, res.Delay)
	assert.Equal(t, int32(2_000_000), r.p.Snapshot().IinLimit)

	require.NoError(t, Submit(r.s, Request{Kind: ReqFloatVoltage, Value: 4_350_000}))
	r.res.Delay = 0
	res = r.tick()
	assert.Equal(t, ReqFloatVoltage, res.Applied)
	assert.Equal(t, int32(4_350_000), r.p.Snapshot().Vfloat)
}

func TestWirelessVfloatBelowVbatDropped(t *testing.T) {
	r := newRig(t, DefaultParams(), sim.DefaultConfig())
	r.p.SetSupply(9_000_000, 2_000_000)
	r.start(AdapterWireless)
	r.runUntil(20, inState(WirelessCVMode))

	require.NoError(t, Submit(r.s, Request{Kind: ReqFloatVoltage, Value: 3_500_000}))
	r.res.Delay = 0
	res := r.tick()
	assert.Equal(t, ReqNone, res.Applied)
	assert.False(t, r.s.HasPending())
	assert.Equal(t, int32(4_400_000), r.s.Vfloat)

	require.NoError(t, Submit(r.s, Request{Kind: ReqInputCurrent, Value: 1_500_000}))
	r.res.Delay = 0
	res = r.tick()
	assert.Equal(t, ReqInputCurrent, res.Applied)
	assert.Equal(t, int32(1_500_000), r.p.Snapshot().IinLimit)
}
