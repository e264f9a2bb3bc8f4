package publish

import (
	"sync/atomic"
	"time"

	"github.com/equinor/faster-ee/internal/frontend"
	"github.com/equinor/faster-ee/internal/outbound"
	"github.com/equinor/faster-ee/internal/queue"
)

// HeartbeatConfig bounds the heartbeat worker's interval (§4.7).
type HeartbeatConfig struct {
	Interval time.Duration
}

func (c HeartbeatConfig) withDefaults() HeartbeatConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	return c
}

// RunHeartbeat is the independent heartbeat worker: every cfg.Interval,
// if at least one client is connected, enqueue a HeartBeat to out;
// otherwise sleep 100ms and re-check (§4.7, §4.8).
func RunHeartbeat(front *frontend.Front, out *queue.Queue[outbound.Event], cfg HeartbeatConfig, running *atomic.Bool) {
	cfg = cfg.withDefaults()
	for running.Load() {
		if len(front.Clients()) == 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		out.Push(outbound.HeartBeat{})
		time.Sleep(cfg.Interval)
	}
}
