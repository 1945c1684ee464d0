package workers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(1, 2)
	now := time.Unix(1700000000, 0)

	assert.True(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))
	// buckets are per IP
	assert.True(t, l.allow("10.0.0.2", now))
	// one token back after a second
	assert.True(t, l.allow("10.0.0.1", now.Add(time.Second)))
}

func TestIPLimiter_Disabled(t *testing.T) {
	l := newIPLimiter(0, 5)
	assert.Nil(t, l)
	for i := 0; i < 10; i++ {
		assert.True(t, l.allow("10.0.0.1", time.Now()))
	}
}

func TestIPLimiter_DropsIdle(t *testing.T) {
	l := newIPLimiter(1, 1)
	start := time.Unix(1700000000, 0)
	l.allow("10.0.0.9", start)

	later := start.Add(time.Hour)
	for i := 0; i < 511; i++ {
		l.allow("10.0.0.1", later)
	}
	_, kept := l.byIP["10.0.0.9"]
	assert.False(t, kept)
	assert.Len(t, l.byIP, 1)
}

func TestClientIP(t *testing.T) {
	r := &http.Request{RemoteAddr: "192.0.2.7:51234"}
	assert.Equal(t, "192.0.2.7", clientIP(r))
	r.RemoteAddr = "192.0.2.8"
	assert.Equal(t, "192.0.2.8", clientIP(r))
}
