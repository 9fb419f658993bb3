package dc

import (
	"context"

	"directcharge-go/pd"
	"directcharge-go/types"
)

// Charger is the direct-charger IC as the runner drives it. Every call is
// a short register transaction.
type Charger interface {
	Prepare() error
	Enable(on bool) error
	SetInputCurrent(uA int32) error
	SetFloatVoltage(uV int32) error
	SetSwitchFreq(code uint8) error
	SetRCPDetect(on bool) error
	SetWatchdog(on bool) error
	KickWatchdog() error
	SetOVDelta(pct int32) error
	Sample() (types.DCSample, error)
}

// Adapter is the USB PD port. Request is fire-and-forget: the effect is
// observed on the next telemetry read. It fails with errcode.Busy while
// the port is mid-transaction and errcode.Detached or errcode.LinkDown
// once the contract is gone.
type Adapter interface {
	Sources(ctx context.Context) ([]pd.PDO, error)
	Request(ctx context.Context, rdo pd.RequestDO) error
}

// Gauge is an optional fuel gauge.
type Gauge interface {
	VBAT() (int32, error)
}

// Publisher receives everything the runner reports upstream.
type Publisher interface {
	State(types.DCState)
	Value(types.DCValue)
	Health(types.DCHealth)
	Event(types.DCEvent)
}

// nopPublisher drops every report.
type nopPublisher struct{}

func (nopPublisher) State(types.DCState)   {}
func (nopPublisher) Value(types.DCValue)   {}
func (nopPublisher) Health(types.DCHealth) {}
func (nopPublisher) Event(types.DCEvent)   {}
