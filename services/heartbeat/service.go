package heartbeat

import (
	"context"
	"time"

	"directcharge-go/bus"
	"directcharge-go/errcode"
	"directcharge-go/types"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	TopicHeartbeat       = bus.T("sys", "heartbeat")
)

const defaultInterval = time.Second

type Service struct {
	Interval time.Duration
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	interval := s.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	start := time.Now()
	var seq uint32

	tick := time.NewTicker(interval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case t := <-tick.C:
			seq++
			conn.Publish(conn.NewMessage(TopicHeartbeat, types.Heartbeat{
				Seq:      seq,
				UptimeMS: t.Sub(start).Milliseconds(),
				TS:       t.UnixMilli(),
			}, true))
		case msg := <-cfgSub.Channel():
			iv, err := parseInterval(msg.Payload)
			if err != nil {
				println("[heartbeat] bad config:", err.Error())
				continue
			}
			tick.Reset(iv)
			println("Info:", "Heartbeat interval set to", iv.String())
		}
	}
}

// parseInterval reads {"interval": ...} where the interval is a duration
// string or a number of seconds.
func parseInterval(payload any) (time.Duration, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, errcode.InvalidPayload
	}
	var d time.Duration
	switch v := m["interval"].(type) {
	case string:
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, errcode.Wrap(errcode.InvalidPayload, "interval", err)
		}
	case int:
		d = time.Duration(v) * time.Second
	case float64:
		d = time.Duration(v * float64(time.Second))
	default:
		return 0, errcode.InvalidPayload
	}
	if d <= 0 {
		return 0, errcode.InvalidParams
	}
	return d, nil
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
