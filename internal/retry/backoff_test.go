package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSchedule(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second, Factor: 2}

	assert.Equal(t, 100*time.Millisecond, b.Next())
	assert.Equal(t, 200*time.Millisecond, b.Next())
	assert.Equal(t, 400*time.Millisecond, b.Next())
	assert.Equal(t, 800*time.Millisecond, b.Next())
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Peek())

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.Next())
}

func TestBackoffDefaults(t *testing.T) {
	b := Backoff{}
	assert.Equal(t, 100*time.Millisecond, b.Next())
	assert.Equal(t, 200*time.Millisecond, b.Next())

	// unbounded growth without a Max
	b = Backoff{Base: time.Second, Factor: 3, Attempt: 2}
	assert.Equal(t, 9*time.Second, b.Peek())
}
