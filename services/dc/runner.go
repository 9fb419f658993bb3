// Package dc runs direct-charging sessions. A Runner owns one charger and
// its adapter port and drives the control loop from a single worker
// goroutine; the Service exposes a runner on the bus.
package dc

import (
	"context"
	"sync/atomic"
	"time"

	"directcharge-go/errcode"
	"directcharge-go/services/dc/internal/dccore"
	"directcharge-go/types"
	"directcharge-go/x/timerx"
)

type Config struct {
	Name   string
	Params Params

	// Keepalive re-sends the last PPS request after this much silence.
	Keepalive time.Duration
	// Watchdog is the charger watchdog refresh period.
	Watchdog time.Duration
	// BusyRetry is the wait before a refused power request is re-sent.
	BusyRetry time.Duration
	// Speedup divides every loop delay. Simulations only; 0 means 1.
	Speedup int
}

func DefaultConfig() Config {
	return Config{
		Name:      "main",
		Params:    DefaultParams(),
		Keepalive: 10 * time.Second,
		Watchdog:  30 * time.Second,
		BusyRetry: 100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Keepalive <= 0 {
		c.Keepalive = def.Keepalive
	}
	if c.Watchdog <= 0 {
		c.Watchdog = def.Watchdog
	}
	if c.BusyRetry <= 0 {
		c.BusyRetry = def.BusyRetry
	}
	if c.Speedup <= 0 {
		c.Speedup = 1
	}
	return c
}

type opCode uint8

const (
	opStart opCode = iota
	opStop
	opSubmit
	opParams
	opState
	opClose
)

type request struct {
	op    opCode
	arg   any
	reply chan reply
}

type reply struct {
	v   any
	err error
}

// Runner is a single-goroutine direct-charging controller.
type Runner struct {
	cfg   Config
	alive atomic.Bool
	reqCh chan request
	done  chan struct{}

	// Owned by the worker only:
	e     *engine
	tick  *time.Timer
	keep  *time.Timer
	retry *time.Timer
}

func NewRunner(cfg Config, chg Charger, ta Adapter, g Gauge, pub Publisher) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		cfg:   cfg,
		reqCh: make(chan request, 4),
		done:  make(chan struct{}),
		e:     newEngine(cfg.Name, cfg.Params, chg, ta, g, pub, nil),
	}
}

// Run starts the worker. It returns immediately.
func (r *Runner) Run(ctx context.Context) {
	r.alive.Store(true)
	go r.worker(ctx)
}

// Close stops any session and the worker, waiting a bounded time.
func (r *Runner) Close() error {
	if !r.alive.Load() {
		return nil
	}
	select {
	case r.reqCh <- request{op: opClose}:
	default:
	}
	t := time.NewTimer(300 * time.Millisecond)
	defer t.Stop()
	select {
	case <-r.done:
		return nil
	case <-t.C:
		return errcode.Timeout
	}
}

// Start opens a session on the named adapter kind.
func (r *Runner) Start(ctx context.Context, adapter string) error {
	_, err := r.call(ctx, opStart, adapter)
	return err
}

// Stop ends the session from any state. Stopping an idle runner is not
// an error.
func (r *Runner) Stop(ctx context.Context) error {
	_, err := r.call(ctx, opStop, nil)
	return err
}

func (r *Runner) RequestInputCurrent(ctx context.Context, uA int32) error {
	_, err := r.call(ctx, opSubmit, dccore.Request{Kind: dccore.ReqInputCurrent, Value: uA})
	return err
}

func (r *Runner) RequestFloatVoltage(ctx context.Context, uV int32) error {
	_, err := r.call(ctx, opSubmit, dccore.Request{Kind: dccore.ReqFloatVoltage, Value: uV})
	return err
}

func (r *Runner) RequestDCMode(ctx context.Context, mode string) error {
	m, err := parseDCMode(mode)
	if err != nil {
		return err
	}
	_, err = r.call(ctx, opSubmit, dccore.Request{Kind: dccore.ReqDCMode, Mode: m})
	return err
}

// SetParams replaces the platform configuration. A running session keeps
// its configuration until it stops.
func (r *Runner) SetParams(ctx context.Context, p Params) error {
	_, err := r.call(ctx, opParams, p)
	return err
}

// State returns the current session state.
func (r *Runner) State(ctx context.Context) (types.DCState, error) {
	v, err := r.call(ctx, opState, nil)
	if err != nil {
		return types.DCState{}, err
	}
	return v.(types.DCState), nil
}

// call enqueues without blocking and waits for the worker's reply.
func (r *Runner) call(ctx context.Context, op opCode, arg any) (any, error) {
	if !r.alive.Load() {
		return nil, errcode.Unavailable
	}
	req := request{op: op, arg: arg, reply: make(chan reply, 1)}
	select {
	case r.reqCh <- req:
	default:
		return nil, errcode.Busy
	}
	select {
	case rep := <-req.reply:
		return rep.v, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, errcode.Unavailable
	}
}

// ---- Worker ----

func (r *Runner) worker(ctx context.Context) {
	defer close(r.done)
	defer r.alive.Store(false)

	r.tick = timerx.NewStopped()
	r.keep = timerx.NewStopped()
	r.retry = timerx.NewStopped()
	wdt := time.NewTicker(r.cfg.Watchdog)
	defer wdt.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown(context.Background())
			return

		case req := <-r.reqCh:
			if req.op == opClose {
				r.shutdown(ctx)
				return
			}
			v, err := r.handle(ctx, req)
			if req.reply != nil {
				req.reply <- reply{v: v, err: err}
			}

		case <-r.tick.C:
			r.schedule(r.e.step(ctx))

		case <-r.retry.C:
			if r.e.retryRDO {
				if res, failed := r.e.retryPower(ctx); failed {
					r.schedule(res)
				} else if r.e.sent {
					timerx.Reset(r.keep, r.cfg.Keepalive)
				}
			}

		case <-r.keep.C:
			res := r.e.keepalive(ctx)
			if res.Stopped {
				r.schedule(res)
				break
			}
			r.afterSend()

		case <-wdt.C:
			r.e.kick()
		}
	}
}

func (r *Runner) handle(ctx context.Context, req request) (any, error) {
	switch req.op {
	case opStart:
		adapter, _ := req.arg.(string)
		res, err := r.e.start(ctx, adapter)
		if err != nil {
			return nil, err
		}
		r.schedule(res)
	case opStop:
		r.schedule(r.e.stop(ctx))
	case opSubmit:
		rq, _ := req.arg.(dccore.Request)
		if err := r.e.submit(rq); err != nil {
			return nil, err
		}
		// a stable state services the request on the next tick, now
		s := r.e.s
		if s.HasPending() && s.State.Stable() && !s.AwaitingPD() {
			timerx.Reset(r.tick, 0)
		}
	case opParams:
		p, _ := req.arg.(Params)
		return nil, r.e.setParams(p)
	case opState:
		return r.e.state(), nil
	}
	return nil, nil
}

// schedule arms the timers a result asks for.
func (r *Runner) schedule(res dccore.Result) {
	if res.Stopped || !r.e.s.Active() {
		timerx.Stop(r.tick)
		timerx.Stop(r.keep)
		timerx.Stop(r.retry)
		return
	}
	timerx.Reset(r.tick, res.Delay/time.Duration(r.cfg.Speedup))
	r.afterSend()
}

// afterSend restarts the keepalive after any power request and arms the
// busy retry when the port refused one.
func (r *Runner) afterSend() {
	if r.e.sent {
		timerx.Reset(r.keep, r.cfg.Keepalive)
	}
	if r.e.retryRDO {
		timerx.Reset(r.retry, r.cfg.BusyRetry)
	}
}

func (r *Runner) shutdown(ctx context.Context) {
	if r.e.s.Active() {
		r.e.stop(ctx)
	}
	timerx.Stop(r.tick)
	timerx.Stop(r.keep)
	timerx.Stop(r.retry)
	println("[dc]", r.cfg.Name, "runner stopped")
}
