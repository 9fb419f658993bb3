// Command directcharge runs the charging services on the host against the
// plant model: config, heartbeat and one direct-charging service on a
// shared bus. It starts an APDO session and logs state changes until the
// charge completes or the process is interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"directcharge-go/bus"
	"directcharge-go/services/config"
	"directcharge-go/services/dc"
	"directcharge-go/services/dc/sim"
	"directcharge-go/services/heartbeat"
	"directcharge-go/types"
)

const (
	device  = "sim"
	speedup = 60 // plant minutes per wall second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = context.WithValue(ctx, config.CtxDeviceKey, device)

	println("boot")
	b := bus.NewBus(16)

	config.NewConfigService().Start(ctx, b.NewConnection("config"))
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))

	plant := sim.New(sim.DefaultConfig())
	cfg := dc.DefaultConfig()
	cfg.Speedup = speedup
	svc := dc.NewService(cfg, plant, plant, plant)
	if err := svc.Start(ctx, b.NewConnection("dc")); err != nil {
		println("[main] dc start failed:", err.Error())
		os.Exit(1)
	}

	go advance(ctx, plant)

	conn := b.NewConnection("main")
	states := conn.Subscribe(bus.T("dc", cfg.Name, "state"))
	events := conn.Subscribe(bus.T("dc", cfg.Name, "event"))
	defer conn.Unsubscribe(states)
	defer conn.Unsubscribe(events)

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	rep, err := conn.RequestWait(rctx, conn.NewMessage(bus.T("dc", cfg.Name, "ctrl", "start"), types.DCStart{Adapter: types.AdapterAPDO}, false))
	cancel()
	if err != nil {
		println("[main] start request failed:", err.Error())
		os.Exit(1)
	}
	if r, ok := rep.Payload.(types.DCReply); ok && !r.OK {
		println("[main] start rejected:", r.Error)
		os.Exit(1)
	}

	last := ""
	for {
		select {
		case <-ctx.Done():
			println("Info: shutting down")
			return
		case m := <-states.Channel():
			st, ok := m.Payload.(types.DCState)
			if !ok || st.State == last {
				continue
			}
			last = st.State
			println("Info:", time.Now().Format("15:04:05"), "state", st.State)
		case m := <-events.Channel():
			ev, ok := m.Payload.(types.DCEvent)
			if !ok {
				continue
			}
			println("Info:", "event", ev.Kind, ev.Detail)
			if ev.Kind == types.EventDone || ev.Kind == types.EventStopped {
				return
			}
		}
	}
}

// advance runs the plant model at the service speedup.
func advance(ctx context.Context, plant *sim.Plant) {
	const step = 50 * time.Millisecond
	t := time.NewTicker(step)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			plant.Advance(step * speedup)
		}
	}
}
