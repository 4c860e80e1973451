package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ch := f.After(10 * time.Minute)
	assert.Equal(t, 1, f.Waiters())

	f.Advance(5 * time.Minute)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	f.Advance(5 * time.Minute)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(10*time.Minute), got)
	default:
		t.Fatal("expected channel to fire")
	}
	assert.Equal(t, 0, f.Waiters())
}

func TestFakeAfterNonPositive(t *testing.T) {
	f := NewFake(time.Now())
	select {
	case <-f.After(0):
	default:
		t.Fatal("expected immediate fire")
	}
}

func TestRealIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Real{}.Now().Location())
}
