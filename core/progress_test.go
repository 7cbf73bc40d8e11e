package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleSuppressesRapidUpdates(t *testing.T) {
	var calls int
	r := Throttle(ReporterFunc(func(done, total int64) {
		calls++
	}), 100*time.Millisecond)

	r.Update(1, 10)
	r.Update(2, 10)
	r.Update(3, 10)

	assert.Equal(t, 1, calls)
}

func TestThrottleAlwaysDeliversFinal(t *testing.T) {
	var last int64
	r := Throttle(ReporterFunc(func(done, total int64) {
		last = done
	}), time.Hour)

	r.Update(1, 10)
	r.Update(10, 10)

	assert.Equal(t, int64(10), last)
}

func TestThrottleDeliversAfterInterval(t *testing.T) {
	var calls int
	r := Throttle(ReporterFunc(func(done, total int64) {
		calls++
	}), 10*time.Millisecond)

	r.Update(1, 10)
	time.Sleep(20 * time.Millisecond)
	r.Update(2, 10)

	assert.Equal(t, 2, calls)
}
