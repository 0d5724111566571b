package auth

import (
	"sync"
	"time"
)

type pendingReset struct {
	timer *time.Timer
	token string
}

// resetScheduler keeps one expiry timer per user. The mutex only guards the
// map; fire callbacks run on the timer goroutine without it.
type resetScheduler struct {
	timers  map[string]*pendingReset
	mu      sync.Mutex
	stopped bool
}

func newResetScheduler() *resetScheduler {
	return &resetScheduler{timers: make(map[string]*pendingReset)}
}

// schedule arms fire after d for userID, replacing any previous timer.
// It is a no-op once stopped.
func (r *resetScheduler) schedule(userID, token string, d time.Duration, fire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	if prev, ok := r.timers[userID]; ok {
		prev.timer.Stop()
	}

	r.timers[userID] = &pendingReset{
		token: token,
		timer: time.AfterFunc(d, func() {
			fire()
			r.forget(userID, token)
		}),
	}
}

// cancel stops the pending timer of userID, if any
func (r *resetScheduler) cancel(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.timers[userID]; ok {
		prev.timer.Stop()
		delete(r.timers, userID)
	}
}

// forget drops the entry of userID only if it is still armed for token
func (r *resetScheduler) forget(userID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.timers[userID]; ok && prev.token == token {
		delete(r.timers, userID)
	}
}

// pending returns the armed token of userID
func (r *resetScheduler) pending(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.timers[userID]
	if !ok {
		return "", false
	}
	return prev.token, true
}

// stop cancels every timer and refuses new ones
func (r *resetScheduler) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true

	for userID, prev := range r.timers {
		prev.timer.Stop()
		delete(r.timers, userID)
	}
}
