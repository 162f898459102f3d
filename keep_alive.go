package mqtt311

import "time"

// defaultGraceFactor stretches the keep-alive interval into the time the
// broker has to answer a PINGREQ, as brokers do for the opposite direction
// (MQTT 3.1.1 section 3.1.2.10).
const defaultGraceFactor = 1.5

// keepAliveTimer tracks the client side of the keep-alive contract: a
// control packet at least once per interval, and some packet from the
// broker within the grace period after each PINGREQ.
//
// It is owned by the session's keep-alive goroutine and is not safe for
// concurrent use.
type keepAliveTimer struct {
	interval    time.Duration
	graceFactor float64

	// pingSent is the time of the oldest unanswered PINGREQ, zero if none.
	pingSent time.Time
}

func newKeepAliveTimer(seconds uint16) *keepAliveTimer {
	return &keepAliveTimer{
		interval:    time.Duration(seconds) * time.Second,
		graceFactor: defaultGraceFactor,
	}
}

// Enabled reports whether keep-alive is on. A zero interval turns it off.
func (k *keepAliveTimer) Enabled() bool {
	return k.interval > 0
}

// CheckInterval is how often the session checks the timer. Pinging at half
// the interval keeps the broker well inside its own deadline.
func (k *keepAliveTimer) CheckInterval() time.Duration {
	return k.interval / 2
}

// PingDue reports whether nothing was written for CheckInterval.
func (k *keepAliveTimer) PingDue(lastWrite, now time.Time) bool {
	return now.Sub(lastWrite) >= k.CheckInterval()
}

// PingSent records a PINGREQ. An earlier unanswered one keeps its time.
func (k *keepAliveTimer) PingSent(now time.Time) {
	if k.pingSent.IsZero() {
		k.pingSent = now
	}
}

// Activity records the time of the last packet from the broker. Any packet
// read after the PINGREQ proves the broker is alive.
func (k *keepAliveTimer) Activity(lastRead time.Time) {
	if !k.pingSent.IsZero() && !lastRead.Before(k.pingSent) {
		k.pingSent = time.Time{}
	}
}

// Deadline returns when the outstanding PINGREQ expires.
func (k *keepAliveTimer) Deadline() (time.Time, bool) {
	if k.pingSent.IsZero() {
		return time.Time{}, false
	}

	timeout := time.Duration(float64(k.interval) * k.graceFactor)
	return k.pingSent.Add(timeout), true
}

// IsExpired reports whether the broker missed the deadline.
func (k *keepAliveTimer) IsExpired(now time.Time) bool {
	deadline, ok := k.Deadline()
	return ok && now.After(deadline)
}
