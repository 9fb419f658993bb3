package dc

import (
	"context"
	"time"

	"directcharge-go/bus"
	"directcharge-go/errcode"
	"directcharge-go/services/dc/internal/dccore"
	"directcharge-go/types"

	"gopkg.in/yaml.v3"
)

var topicConfigDC = bus.T("config", "dc")

// ctrlTimeout bounds how long a control request waits for the worker.
const ctrlTimeout = 2 * time.Second

// Service exposes one runner on the bus:
//
//	dc/<name>/ctrl/<verb>  requests, replied with types.DCReply
//	dc/<name>/state        retained types.DCState
//	dc/<name>/value        retained types.DCValue
//	dc/<name>/health       retained types.DCHealth
//	dc/<name>/event        types.DCEvent
//	config/dc              retained Params, applied at the next session
type Service struct {
	cfg   Config
	chg   Charger
	ta    Adapter
	gauge Gauge

	r *Runner
}

func NewService(cfg Config, chg Charger, ta Adapter, g Gauge) *Service {
	return &Service{cfg: cfg.withDefaults(), chg: chg, ta: ta, gauge: g}
}

// Start the runner and the service loop.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	pub := NewBusPublisher(conn, s.cfg.Name)
	s.r = NewRunner(s.cfg, s.chg, s.ta, s.gauge, pub)
	s.r.Run(ctx)
	pub.State(types.DCState{State: dccore.NoCharging.String(), DCMode: types.DCModeNormal, TS: time.Now().UnixMilli()})
	go s.serviceLoop(ctx, conn)
	return nil
}

// Runner returns the runner once Start has been called.
func (s *Service) Runner() *Runner { return s.r }

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigDC)
	ctrlSub := conn.Subscribe(bus.T("dc", s.cfg.Name, "ctrl", bus.WildOne))
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(ctrlSub)

	params := s.cfg.Params

	for {
		select {
		case <-ctx.Done():
			println("Info: dc service stopping")
			_ = s.r.Close()
			return

		case msg := <-cfgSub.Channel():
			p := params
			if err := decodeInto(msg.Payload, &p); err != nil {
				println("[dc] config decode failed:", err.Error())
				continue
			}
			if err := s.call(ctx, func(c context.Context) error { return s.r.SetParams(c, p) }); err != nil {
				println("[dc] config rejected:", err.Error())
				continue
			}
			params = p
			println("[dc] config applied")

		case msg := <-ctrlSub.Channel():
			rep := s.control(ctx, msg.Topic.At(3), msg.Payload)
			if msg.CanReply() {
				conn.Reply(msg, rep, false)
			}
		}
	}
}

func (s *Service) call(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, ctrlTimeout)
	defer cancel()
	return fn(c)
}

func (s *Service) control(ctx context.Context, verb string, payload any) types.DCReply {
	var err error
	switch verb {
	case "start":
		var v types.DCStart
		if v, err = decode[types.DCStart](payload); err == nil {
			err = s.call(ctx, func(c context.Context) error { return s.r.Start(c, v.Adapter) })
		}
	case "stop":
		err = s.call(ctx, s.r.Stop)
	case "set_input_current":
		var v types.DCSetInputCurrent
		if v, err = decode[types.DCSetInputCurrent](payload); err == nil {
			err = s.call(ctx, func(c context.Context) error { return s.r.RequestInputCurrent(c, v.MicroA) })
		}
	case "set_float_voltage":
		var v types.DCSetFloatVoltage
		if v, err = decode[types.DCSetFloatVoltage](payload); err == nil {
			err = s.call(ctx, func(c context.Context) error { return s.r.RequestFloatVoltage(c, v.MicroV) })
		}
	case "set_dc_mode":
		var v types.DCSetMode
		if v, err = decode[types.DCSetMode](payload); err == nil {
			err = s.call(ctx, func(c context.Context) error { return s.r.RequestDCMode(c, v.Mode) })
		}
	case "state":
		var st types.DCState
		err = s.call(ctx, func(c context.Context) (e error) {
			st, e = s.r.State(c)
			return e
		})
		if err == nil {
			return types.DCReply{OK: true, State: &st}
		}
	default:
		err = errcode.Unsupported
	}
	if err != nil {
		return types.DCReply{OK: false, Error: string(errcode.Of(err))}
	}
	return types.DCReply{OK: true}
}

// decode accepts the typed payload, a pointer to it, or any document
// that decodes into it.
func decode[T any](payload any) (T, error) {
	var v T
	switch x := payload.(type) {
	case T:
		return x, nil
	case *T:
		if x == nil {
			return v, errcode.InvalidPayload
		}
		return *x, nil
	case nil:
		return v, nil
	}
	if err := decodeInto(payload, &v); err != nil {
		return v, errcode.InvalidPayload
	}
	return v, nil
}

// decodeInto overlays src onto dst through YAML, so maps published by
// the config service and raw documents both work.
func decodeInto[T any](src any, dst *T) error {
	switch v := src.(type) {
	case T:
		*dst = v
		return nil
	case *T:
		if v == nil {
			return errcode.InvalidPayload
		}
		*dst = *v
		return nil
	case []byte:
		return yaml.Unmarshal(v, dst)
	case string:
		return yaml.Unmarshal([]byte(v), dst)
	}
	b, err := yaml.Marshal(src)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, dst)
}

// ---- bus publisher ----

type busPublisher struct {
	conn *bus.Connection
	base bus.Topic
}

// NewBusPublisher publishes runner reports under dc/<name>/.
func NewBusPublisher(conn *bus.Connection, name string) Publisher {
	return &busPublisher{conn: conn, base: bus.T("dc", name)}
}

func (p *busPublisher) pub(leaf string, v any, retained bool) {
	p.conn.Publish(p.conn.NewMessage(p.base.Append(leaf), v, retained))
}

func (p *busPublisher) State(v types.DCState)   { p.pub("state", v, true) }
func (p *busPublisher) Value(v types.DCValue)   { p.pub("value", v, true) }
func (p *busPublisher) Health(v types.DCHealth) { p.pub("health", v, true) }
func (p *busPublisher) Event(v types.DCEvent)   { p.pub("event", v, false) }
