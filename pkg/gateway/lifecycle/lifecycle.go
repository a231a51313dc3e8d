// Package lifecycle holds process readiness shared by handlers: not ready
// until startup (migrations, broker dial) completes, and draining once
// shutdown begins.
package lifecycle

import "sync/atomic"

type Lifecycle struct {
	started  atomic.Bool
	draining atomic.Bool
}

func (l *Lifecycle) MarkStarted() {
	if l != nil {
		l.started.Store(true)
	}
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l != nil {
		l.draining.Store(draining)
	}
}

func (l *Lifecycle) IsDraining() bool {
	return l != nil && l.draining.Load()
}

// Ready reports whether the process should receive traffic. A nil
// Lifecycle is always ready.
func (l *Lifecycle) Ready() bool {
	if l == nil {
		return true
	}
	return l.started.Load() && !l.draining.Load()
}
