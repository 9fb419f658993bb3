package heartbeat

import (
	"context"
	"testing"
	"time"

	"directcharge-go/bus"
	"directcharge-go/errcode"
	"directcharge-go/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   any
		want time.Duration
		err  errcode.Code
	}{
		{map[string]any{"interval": "5s"}, 5 * time.Second, errcode.OK},
		{map[string]any{"interval": 2}, 2 * time.Second, errcode.OK},
		{map[string]any{"interval": 0.5}, 500 * time.Millisecond, errcode.OK},
		{map[string]any{"interval": "soon"}, 0, errcode.InvalidPayload},
		{map[string]any{"interval": 0}, 0, errcode.InvalidParams},
		{map[string]any{}, 0, errcode.InvalidPayload},
		{"5s", 0, errcode.InvalidPayload},
	}
	for _, c := range cases {
		got, err := parseInterval(c.in)
		assert.Equal(t, c.err, errcode.Of(err), "%v", c.in)
		assert.Equal(t, c.want, got, "%v", c.in)
	}
}

func TestHeartbeatPublishes(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("heartbeat")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := &Service{Interval: 5 * time.Millisecond}
	require.NoError(t, s.Start(ctx, conn))

	sub := b.NewConnection("client").Subscribe(TopicHeartbeat)
	var last uint32
	for last < 3 {
		select {
		case m := <-sub.Channel():
			hb, ok := m.Payload.(types.Heartbeat)
			require.True(t, ok)
			assert.GreaterOrEqual(t, hb.Seq, last)
			assert.True(t, m.Retained)
			last = hb.Seq
		case <-time.After(time.Second):
			t.Fatal("no heartbeat")
		}
	}
}
