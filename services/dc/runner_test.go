package dc

import (
	"context"
	"sync"
	"testing"
	"time"

	"directcharge-go/errcode"
	"directcharge-go/services/dc/sim"
	"directcharge-go/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Charger = (*sim.Plant)(nil)
	_ Adapter = (*sim.Plant)(nil)
	_ Gauge   = (*sim.Plant)(nil)
)

// recorder is a Publisher that keeps everything it is given.
type recorder struct {
	mu     sync.Mutex
	states []types.DCState
	values []types.DCValue
	health []types.DCHealth
	events []types.DCEvent
}

func (r *recorder) State(v types.DCState) {
	r.mu.Lock()
	r.states = append(r.states, v)
	r.mu.Unlock()
}

func (r *recorder) Value(v types.DCValue) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder) Health(v types.DCHealth) {
	r.mu.Lock()
	r.health = append(r.health, v)
	r.mu.Unlock()
}

func (r *recorder) Event(v types.DCEvent) {
	r.mu.Lock()
	r.events = append(r.events, v)
	r.mu.Unlock()
}

func (r *recorder) lastHealth() types.DCHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.health) == 0 {
		return types.DCHealth{}
	}
	return r.health[len(r.health)-1]
}

func (r *recorder) lastValue() types.DCValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return types.DCValue{}
	}
	return r.values[len(r.values)-1]
}

func (r *recorder) sawEvent(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Speedup = 100
	return cfg
}

func newTestRunner(t *testing.T, cfg Config) (*Runner, *sim.Plant, *recorder) {
	t.Helper()
	p := sim.New(sim.DefaultConfig())
	rec := &recorder{}
	r := NewRunner(cfg, p, p, p, rec)
	ctx, cancel := context.WithCancel(context.Background())
	r.Run(ctx)
	t.Cleanup(func() {
		_ = r.Close()
		cancel()
	})
	return r, p, rec
}

func waitState(t *testing.T, r *Runner, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := r.State(context.Background())
		return err == nil && st.State == want
	}, 5*time.Second, 5*time.Millisecond, "never reached %s", want)
}

func TestRunnerUnavailableBeforeRun(t *testing.T) {
	p := sim.New(sim.DefaultConfig())
	r := NewRunner(DefaultConfig(), p, p, p, nil)
	assert.ErrorIs(t, r.Start(context.Background(), types.AdapterAPDO), errcode.Unavailable)
}

func TestRunnerReachesCC(t *testing.T) {
	r, p, rec := newTestRunner(t, fastConfig())
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	waitState(t, r, "cc_mode")

	st, err := r.State(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, st.Session)
	assert.Equal(t, types.AdapterAPDO, st.Adapter)
	assert.Equal(t, uint8(1), st.ChgMode)

	assert.True(t, rec.sawEvent(types.EventStarted))
	assert.Equal(t, types.HealthGood, rec.lastHealth().Code)
	assert.True(t, p.Snapshot().Enabled)
	assert.Equal(t, int32(3_000_000), rec.lastValue().IinCC_uA)
}

func TestRunnerSecondStartIsBusy(t *testing.T) {
	r, _, _ := newTestRunner(t, fastConfig())
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	assert.ErrorIs(t, r.Start(context.Background(), types.AdapterAPDO), errcode.Busy)
}

func TestRunnerRejectsUnknownAdapter(t *testing.T) {
	r, _, _ := newTestRunner(t, fastConfig())
	assert.ErrorIs(t, r.Start(context.Background(), "qc3"), errcode.InvalidParams)
}

func TestRunnerStop(t *testing.T) {
	r, p, rec := newTestRunner(t, fastConfig())
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	waitState(t, r, "cc_mode")

	require.NoError(t, r.Stop(context.Background()))
	st, err := r.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "no_charging", st.State)
	assert.Empty(t, st.Session)
	assert.True(t, rec.sawEvent(types.EventStopped))
	assert.False(t, p.Snapshot().Enabled)
	assert.Equal(t, types.HealthGood, rec.lastHealth().Code)

	// stopping again is harmless
	assert.NoError(t, r.Stop(context.Background()))
}

func TestRunnerInputCurrentRequest(t *testing.T) {
	r, _, rec := newTestRunner(t, fastConfig())
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	waitState(t, r, "cc_mode")

	require.NoError(t, r.RequestInputCurrent(context.Background(), 2_000_000))
	require.Eventually(t, func() bool {
		return rec.lastValue().IinCC_uA == 2_000_000
	}, 5*time.Second, 5*time.Millisecond)
	waitState(t, r, "cc_mode")
	assert.ErrorIs(t, r.RequestInputCurrent(context.Background(), 100_000), errcode.InvalidParams)
}

func TestRunnerDCModeNeedsSession(t *testing.T) {
	r, _, _ := newTestRunner(t, fastConfig())
	assert.ErrorIs(t, r.RequestDCMode(context.Background(), types.DCModeBypass2to1), errcode.NotCharging)
	assert.ErrorIs(t, r.RequestDCMode(context.Background(), "turbo"), errcode.InvalidParams)
}

func TestRunnerBusyPortRetriedOnce(t *testing.T) {
	r, p, rec := newTestRunner(t, fastConfig())
	p.BusyRequests(1)
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	waitState(t, r, "cc_mode")
	assert.Equal(t, types.HealthGood, rec.lastHealth().Code)
}

func TestRunnerBusyPortTwiceStops(t *testing.T) {
	r, p, rec := newTestRunner(t, fastConfig())
	p.BusyRequests(2)
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	require.Eventually(t, func() bool {
		return rec.lastHealth().Code == types.HealthDCErr
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, string(errcode.Busy), rec.lastHealth().Reason)
	waitState(t, r, "no_charging")
}

func TestRunnerDetachStops(t *testing.T) {
	cfg := fastConfig()
	cfg.Keepalive = 20 * time.Millisecond
	r, p, rec := newTestRunner(t, cfg)
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	waitState(t, r, "cc_mode")

	p.Detach()
	require.Eventually(t, func() bool {
		return rec.lastHealth().Code == types.HealthDCErr
	}, 5*time.Second, 5*time.Millisecond)
	// whichever notices first: the keepalive or the loss of VIN
	assert.Contains(t, []string{string(errcode.Detached), "vin_invalid"}, rec.lastHealth().Reason)
	assert.True(t, rec.sawEvent(types.EventStopped))

	assert.ErrorIs(t, r.Start(context.Background(), types.AdapterAPDO), errcode.Detached)
}

func TestRunnerKeepaliveResends(t *testing.T) {
	cfg := fastConfig()
	cfg.Keepalive = 10 * time.Millisecond
	r, p, _ := newTestRunner(t, cfg)
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	waitState(t, r, "cc_mode")

	n := p.Snapshot().Requests
	require.Eventually(t, func() bool {
		return p.Snapshot().Requests > n+2
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRunnerWatchdogKicks(t *testing.T) {
	cfg := fastConfig()
	cfg.Watchdog = 5 * time.Millisecond
	r, p, _ := newTestRunner(t, cfg)
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	waitState(t, r, "cc_mode")
	require.Eventually(t, func() bool {
		return p.Snapshot().Kicks > 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRunnerWirelessSkipsNegotiation(t *testing.T) {
	r, p, _ := newTestRunner(t, fastConfig())
	p.SetSupply(9_000_000, 1_500_000)
	require.NoError(t, r.Start(context.Background(), types.AdapterWireless))
	waitState(t, r, "wireless_cv")
	assert.Zero(t, p.Snapshot().Requests)
}

func TestRunnerParams(t *testing.T) {
	r, _, rec := newTestRunner(t, fastConfig())
	bad := DefaultParams()
	bad.IinCfg = 0
	err := r.SetParams(context.Background(), bad)
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	p := DefaultParams()
	p.IinCfg = 2_000_000
	require.NoError(t, r.SetParams(context.Background(), p))
	require.NoError(t, r.Start(context.Background(), types.AdapterAPDO))
	waitState(t, r, "cc_mode")
	assert.Equal(t, int32(2_000_000), rec.lastValue().IinCC_uA)
}
