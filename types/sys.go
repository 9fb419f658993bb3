package types

// Heartbeat is published retained on sys/heartbeat.
type Heartbeat struct {
	Seq      uint32 `json:"seq" yaml:"seq"`
	UptimeMS int64  `json:"uptime_ms" yaml:"uptime_ms"`
	TS       int64  `json:"ts_ms" yaml:"ts_ms"`
}
