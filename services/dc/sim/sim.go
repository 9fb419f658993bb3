// Package sim is a deterministic plant for the direct-charging loop: a USB
// PD source with output resistance and current limit, a fixed-ratio charge
// pump and a battery with internal resistance and linear open-circuit
// voltage. A Plant satisfies the charger, adapter and gauge ports.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"directcharge-go/errcode"
	"directcharge-go/pd"
	"directcharge-go/types"
)

var ErrReadFailed = errors.New("sim: injected read failure")

// Config describes the simulated hardware.
type Config struct {
	Sources []pd.PDO `yaml:"-"`

	Ratio    int32 `yaml:"ratio"`      // pump ratio (2 for 2:1)
	OCV      int32 `yaml:"ocv_uV"`     // initial open-circuit voltage
	OCVEmpty int32 `yaml:"ocv_empty_uV"`
	OCVFull  int32 `yaml:"ocv_full_uV"`
	Capacity int64 `yaml:"capacity_uAh"`
	RPath    int32 `yaml:"r_path_mOhm"` // adapter to cell, output referred
	RBat     int32 `yaml:"r_bat_mOhm"`

	// CurrentLimit makes a PPS source fold back at the requested current.
	CurrentLimit bool `yaml:"current_limit"`
}

// DefaultSources is a 5 V / 9 V fixed plus 3.3-11 V 3 A PPS source.
func DefaultSources() []pd.PDO {
	return []pd.PDO{
		pd.PDO(pd.NewFixedPDO(5_000_000, 3_000_000)),
		pd.PDO(pd.NewFixedPDO(9_000_000, 3_000_000)),
		pd.PDO(pd.NewPPSPDO(3_300_000, 11_000_000, 3_000_000)),
	}
}

func DefaultConfig() Config {
	return Config{
		Sources:      DefaultSources(),
		Ratio:        2,
		OCV:          3_800_000,
		OCVEmpty:     3_400_000,
		OCVFull:      4_400_000,
		Capacity:     100_000,
		RPath:        100,
		RBat:         50,
		CurrentLimit: true,
	}
}

// Snapshot is the externally visible plant state.
type Snapshot struct {
	Online    bool
	TaVol     int32
	TaCur     int32
	Object    uint8
	Enabled   bool
	IinLimit  int32
	Vfloat    int32
	Fsw       uint8
	RCPDetect bool
	Watchdog  bool
	OVDelta   int32
	OCV       int32
	Requests  int
	Kicks     int
	Prepared  int
}

// Plant is safe for concurrent use.
type Plant struct {
	mu  sync.Mutex
	cfg Config

	online   bool
	taVol    int32
	taCur    int32
	object   uint8
	pps      bool
	enabled  bool
	iinLimit int32
	vfloat   int32
	fsw      uint8
	rcp      bool
	wdt      bool
	ovDelta  int32
	charge   float64 // µAh above empty

	inject    types.DCStatus
	failReads int
	busy      int
	rcpTrip   bool

	requests int
	kicks    int
	prepared int
}

func New(cfg Config) *Plant {
	def := DefaultConfig()
	if cfg.Ratio <= 0 {
		cfg.Ratio = def.Ratio
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.RBat <= 0 {
		cfg.RBat = def.RBat
	}
	if cfg.OCVFull <= cfg.OCVEmpty {
		cfg.OCVEmpty, cfg.OCVFull = def.OCVEmpty, def.OCVFull
	}
	if cfg.Sources == nil {
		cfg.Sources = def.Sources
	}
	p := &Plant{cfg: cfg, online: true, rcp: true, ovDelta: 30}
	ocv := min(max(cfg.OCV, cfg.OCVEmpty), cfg.OCVFull)
	p.charge = float64(ocv-cfg.OCVEmpty) * float64(cfg.Capacity) / float64(cfg.OCVFull-cfg.OCVEmpty)
	return p
}

// ---- fault injection ----

// Inject ORs extra status flags into every following sample.
func (p *Plant) Inject(flags types.DCStatus) {
	p.mu.Lock()
	p.inject |= flags
	p.mu.Unlock()
}

// Clear removes injected flags.
func (p *Plant) Clear(flags types.DCStatus) {
	p.mu.Lock()
	p.inject &^= flags
	p.mu.Unlock()
}

// FailReads makes the next n samples fail.
func (p *Plant) FailReads(n int) {
	p.mu.Lock()
	p.failReads = n
	p.mu.Unlock()
}

// BusyRequests makes the next n adapter requests return Busy.
func (p *Plant) BusyRequests(n int) {
	p.mu.Lock()
	p.busy = n
	p.mu.Unlock()
}

// Detach removes the adapter; requests fail and VIN collapses.
func (p *Plant) Detach() {
	p.mu.Lock()
	p.online = false
	p.taVol, p.taCur = 0, 0
	p.mu.Unlock()
}

// SetSupply drives the input directly, as a wireless receiver would.
func (p *Plant) SetSupply(uV, uA int32) {
	p.mu.Lock()
	p.taVol, p.taCur, p.pps = uV, uA, false
	p.mu.Unlock()
}

func (p *Plant) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Online:    p.online,
		TaVol:     p.taVol,
		TaCur:     p.taCur,
		Object:    p.object,
		Enabled:   p.enabled,
		IinLimit:  p.iinLimit,
		Vfloat:    p.vfloat,
		Fsw:       p.fsw,
		RCPDetect: p.rcp,
		Watchdog:  p.wdt,
		OVDelta:   p.ovDelta,
		OCV:       p.ocv(),
		Requests:  p.requests,
		Kicks:     p.kicks,
		Prepared:  p.prepared,
	}
}

// ---- physics ----

func (p *Plant) ocv() int32 {
	c := p.cfg
	v := float64(c.OCVEmpty) + float64(c.OCVFull-c.OCVEmpty)*p.charge/float64(c.Capacity)
	return int32(v)
}

// solve returns the battery current and the charger loop that limits it.
func (p *Plant) solve() (ibat int64, loop types.DCStatus) {
	if !p.enabled || p.taVol <= 0 {
		return 0, 0
	}
	c := p.cfg
	r := int64(c.Ratio)
	ocv := int64(p.ocv())
	ibat = (int64(p.taVol)/r - ocv) * 1000 / int64(c.RPath+c.RBat)
	if ibat <= 0 {
		return 0, 0
	}
	if c.CurrentLimit && p.pps && ibat > int64(p.taCur)*r {
		ibat = int64(p.taCur) * r
	}
	if lim := int64(p.iinLimit) * r; p.iinLimit > 0 && ibat > lim {
		ibat, loop = lim, types.DCIinLoop
	}
	if p.vfloat > 0 {
		lim := (int64(p.vfloat) - ocv) * 1000 / int64(c.RBat)
		if ibat > lim {
			ibat, loop = max(lim, 0), types.DCVfltLoop
		}
	}
	return ibat, loop
}

// Advance integrates charge over d.
func (p *Plant) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ibat, _ := p.solve()
	p.charge += float64(ibat) * d.Hours()
	if full := float64(p.cfg.Capacity); p.charge > full {
		p.charge = full
	}
}

// ---- charger port ----

func (p *Plant) Prepare() error {
	p.mu.Lock()
	p.enabled = false
	p.prepared++
	p.mu.Unlock()
	return nil
}

func (p *Plant) Enable(on bool) error {
	p.mu.Lock()
	p.enabled = on
	p.rcpTrip = false
	p.mu.Unlock()
	return nil
}

func (p *Plant) SetInputCurrent(uA int32) error {
	p.mu.Lock()
	p.iinLimit = uA
	p.mu.Unlock()
	return nil
}

func (p *Plant) SetFloatVoltage(uV int32) error {
	p.mu.Lock()
	p.vfloat = uV
	p.mu.Unlock()
	return nil
}

func (p *Plant) SetSwitchFreq(code uint8) error {
	if code > 0x0F {
		return errcode.InvalidParams
	}
	p.mu.Lock()
	p.fsw = code
	p.mu.Unlock()
	return nil
}

func (p *Plant) SetRCPDetect(on bool) error {
	p.mu.Lock()
	p.rcp = on
	p.mu.Unlock()
	return nil
}

func (p *Plant) SetWatchdog(on bool) error {
	p.mu.Lock()
	p.wdt = on
	p.mu.Unlock()
	return nil
}

func (p *Plant) KickWatchdog() error {
	p.mu.Lock()
	p.kicks++
	p.mu.Unlock()
	return nil
}

func (p *Plant) SetOVDelta(pct int32) error {
	p.mu.Lock()
	p.ovDelta = pct
	p.mu.Unlock()
	return nil
}

// Sample reads the charger. A reverse-current trip shows standby on one
// read and recovers on the next.
func (p *Plant) Sample() (types.DCSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failReads > 0 {
		p.failReads--
		return types.DCSample{}, ErrReadFailed
	}

	ibat, loop := p.solve()
	r := int64(p.cfg.Ratio)
	ocv := int64(p.ocv())
	out := types.DCSample{
		IIN:     int32(ibat / r),
		VBAT:    int32(ocv + ibat*int64(p.cfg.RBat)/1000),
		DieTemp: 350,
	}
	if p.online && p.taVol > 0 {
		out.Status |= types.DCVinOK
		out.VIN = p.taVol
		if drop := int32(r * (ocv + ibat*int64(p.cfg.RPath+p.cfg.RBat)/1000)); ibat > 0 && drop < out.VIN {
			out.VIN = drop
		}
	}

	switch {
	case !p.enabled:
		out.Status |= types.DCStandby
	case p.rcp && p.enabled && ibat == 0 && p.taVol > 0 && !p.rcpTrip:
		p.rcpTrip = true
		out.Status |= types.DCStandby
	default:
		out.Status |= types.DCActive | loop
	}
	out.Status |= p.inject
	if out.Status.Has(types.DCVinOV) {
		out.Status &^= types.DCVinOK
	}
	return out, nil
}

// ---- gauge port ----

func (p *Plant) VBAT() (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ibat, _ := p.solve()
	return int32(int64(p.ocv()) + ibat*int64(p.cfg.RBat)/1000), nil
}

// ---- adapter port ----

// Sources returns the advertised power objects.
func (p *Plant) Sources(ctx context.Context) ([]pd.PDO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online {
		return nil, errcode.Detached
	}
	return append([]pd.PDO(nil), p.cfg.Sources...), nil
}

// Request applies a request data object.
func (p *Plant) Request(ctx context.Context, rdo pd.RequestDO) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online {
		return errcode.Detached
	}
	if p.busy > 0 {
		p.busy--
		return errcode.Busy
	}
	pos := int(rdo.ObjectPosition())
	if pos < 1 || pos > len(p.cfg.Sources) {
		return errcode.InvalidParams
	}
	src := p.cfg.Sources[pos-1]
	switch src.Type() {
	case pd.PDOTypePPS:
		o := pd.PPSPDO(src)
		v, c := rdo.PPSOutputVoltage(), rdo.PPSOutputCurrent()
		if v < o.MinVoltage() || v > o.MaxVoltage() || c > o.MaxCurrent() {
			return errcode.InvalidParams
		}
		p.taVol, p.taCur, p.pps = v, c, true
	case pd.PDOTypeFixed:
		o := pd.FixedPDO(src)
		c := rdo.FixedOperatingCurrent()
		if c > o.MaxCurrent() {
			return errcode.InvalidParams
		}
		p.taVol, p.taCur, p.pps = o.Voltage(), c, false
	default:
		return errcode.Unsupported
	}
	p.object = uint8(pos)
	p.requests++
	return nil
}
