package httpserver

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewClientLimiter(1, 2) // refills in 2s, so idle clients go after a minute
	l.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		assert.True(t, l.Allow("10.0.0."+string(rune('a'+i%26))+string(rune('a'+i/26))))
	}
	assert.Equal(t, 50, l.Len())

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("192.0.2.1"))
	assert.Equal(t, 51, l.Len(), "nothing idle long enough yet")

	now = now.Add(45 * time.Second)
	assert.True(t, l.Allow("192.0.2.2"))
	assert.Equal(t, 2, l.Len(), "only clients seen in the last minute remain")
}

func TestClientLimiter_BucketSurvivesWhileActive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewClientLimiter(0.01, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("203.0.113.9"))
	assert.True(t, l.Allow("203.0.113.9"))
	assert.False(t, l.Allow("203.0.113.9"))

	// still inside the refill window: the bucket is kept, and still empty
	now = now.Add(90 * time.Second)
	assert.False(t, l.Allow("203.0.113.9"))
}

func TestClientIP_UsesRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/sessions", nil)
	r.RemoteAddr = "198.51.100.7:51234"
	r.Header.Set("X-Forwarded-For", "10.9.9.9")
	assert.Equal(t, "198.51.100.7", clientIP(r))
}
