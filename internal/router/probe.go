package router

import (
	"time"

	"github.com/rcliao/agent-bridge/internal/protocol"
)

// scheduleProbeLocked arms a one-shot chat probe after registration. A new
// registration replaces any pending probe.
func (r *Router) scheduleProbeLocked() {
	if r.opts.ProbeDelay <= 0 || r.closed {
		return
	}
	r.stopProbeLocked()
	gen := r.probeGen
	r.probe = time.AfterFunc(r.opts.ProbeDelay, func() { r.fireProbe(gen) })
}

func (r *Router) stopProbeLocked() {
	r.probeGen++
	if r.probe != nil {
		r.probe.Stop()
		r.probe = nil
	}
}

// fireProbe runs on the timer goroutine. A probe whose generation is stale
// lost a race with stopProbeLocked and must not send.
func (r *Router) fireProbe(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.probeGen || r.closed {
		return
	}
	r.probe = nil
	if err := r.sendLocked(protocol.TypeChat, protocol.NewChat(r.opts.ProbeText)); err != nil {
		r.logger.Debug().Err(err).Msg("probe not sent")
	}
}
