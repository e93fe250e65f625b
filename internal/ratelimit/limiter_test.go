package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_SixthCallRejected(t *testing.T) {
	l := New()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("key", 5, time.Second), "call %d should be allowed", i+1)
	}
	assert.False(t, l.Allow("key", 5, time.Second), "6th call within window should be rejected")
}

func TestAllow_WindowResets(t *testing.T) {
	now := time.Now()
	l := NewWithClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("key", 5, time.Second))
	}
	assert.False(t, l.Allow("key", 5, time.Second))

	// Advance past the window: a fresh call starts a new window with count=1
	now = now.Add(1001 * time.Millisecond)
	assert.True(t, l.Allow("key", 5, time.Second))

	// The new window allows 4 more before rejecting again
	for i := 0; i < 4; i++ {
		assert.True(t, l.Allow("key", 5, time.Second))
	}
	assert.False(t, l.Allow("key", 5, time.Second))
}

func TestAllow_KeysIndependent(t *testing.T) {
	l := New()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("a", 5, time.Minute))
	}
	assert.False(t, l.Allow("a", 5, time.Minute))
	assert.True(t, l.Allow("b", 5, time.Minute))
}

func TestAllowScope_NoCrossScopeCollision(t *testing.T) {
	l := New()
	login := Scope{Name: "login", Max: 1, Window: time.Minute}
	mfa := Scope{Name: "mfa", Max: 1, Window: time.Minute}

	assert.True(t, l.AllowScope(login, "user1"))
	assert.False(t, l.AllowScope(login, "user1"))

	// Same key under a different scope has its own window
	assert.True(t, l.AllowScope(mfa, "user1"))
}

func TestReset(t *testing.T) {
	l := New()

	assert.True(t, l.Allow("key", 1, time.Minute))
	assert.False(t, l.Allow("key", 1, time.Minute))

	l.Reset("key")
	assert.True(t, l.Allow("key", 1, time.Minute))
}

func TestResetScope(t *testing.T) {
	l := New()
	login := Scope{Name: "login", Max: 1, Window: time.Minute}
	mfa := Scope{Name: "mfa", Max: 1, Window: time.Minute}

	assert.True(t, l.AllowScope(login, "user1"))
	assert.True(t, l.AllowScope(mfa, "user1"))

	l.ResetScope(login, "user1")

	// Only the login window cleared
	assert.True(t, l.AllowScope(login, "user1"))
	assert.False(t, l.AllowScope(mfa, "user1"))
}

func TestPruneStale(t *testing.T) {
	now := time.Now()
	l := NewWithClock(func() time.Time { return now })

	l.Allow("old", 5, time.Second)
	now = now.Add(2 * time.Hour)
	l.Allow("fresh", 5, time.Second)

	pruned := l.PruneStale(time.Hour)
	assert.Equal(t, 1, pruned)

	// Fresh window survives and keeps counting
	for i := 0; i < 4; i++ {
		assert.True(t, l.Allow("fresh", 5, time.Second))
	}
	assert.False(t, l.Allow("fresh", 5, time.Second))
}

func TestAllow_ConcurrentCallers(t *testing.T) {
	l := New()

	const workers = 20
	const callsEach = 50

	allowed := make([]int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < callsEach; i++ {
				if l.Allow("shared", 100, time.Minute) {
					allowed[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, n := range allowed {
		total += n
	}
	assert.Equal(t, 100, total, "exactly max calls should be admitted under contention")
}

func ExampleLimiter_Allow() {
	l := New()
	fmt.Println(l.Allow("ip:203.0.113.7", 1, time.Minute))
	fmt.Println(l.Allow("ip:203.0.113.7", 1, time.Minute))
	// Output:
	// true
	// false
}
