package mqtt311

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeepAliveTimer(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		k := newKeepAliveTimer(0)
		assert.False(t, k.Enabled())
	})

	t.Run("ping due", func(t *testing.T) {
		k := newKeepAliveTimer(60)
		assert.True(t, k.Enabled())
		assert.Equal(t, 30*time.Second, k.CheckInterval())

		now := time.Now()
		assert.False(t, k.PingDue(now.Add(-29*time.Second), now))
		assert.True(t, k.PingDue(now.Add(-30*time.Second), now))
	})

	t.Run("answered ping", func(t *testing.T) {
		k := newKeepAliveTimer(10)
		now := time.Now()

		k.PingSent(now)
		deadline, ok := k.Deadline()
		assert.True(t, ok)
		assert.Equal(t, now.Add(15*time.Second), deadline)

		// A read from before the ping does not count.
		k.Activity(now.Add(-time.Second))
		_, ok = k.Deadline()
		assert.True(t, ok)

		k.Activity(now.Add(time.Second))
		_, ok = k.Deadline()
		assert.False(t, ok)
		assert.False(t, k.IsExpired(now.Add(time.Hour)))
	})

	t.Run("unanswered ping", func(t *testing.T) {
		k := newKeepAliveTimer(10)
		now := time.Now()

		k.PingSent(now)
		k.PingSent(now.Add(5 * time.Second))

		assert.False(t, k.IsExpired(now.Add(15*time.Second)))
		assert.True(t, k.IsExpired(now.Add(16*time.Second)))
	})
}
