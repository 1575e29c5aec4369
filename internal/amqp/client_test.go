package amqp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesUpToCap(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second}
	for attempt, d := range want {
		assert.Equal(t, d, exponentialBackoff(attempt), "attempt %d", attempt)
	}
	assert.Equal(t, 30*time.Second, exponentialBackoff(12))
}

func TestConnectionErrorsAreRecognised(t *testing.T) {
	retry := []string{"connection refused", "connection closed", "unexpected EOF", "broken pipe", "use of closed network connection"}
	for _, msg := range retry {
		assert.True(t, isConnectionError(errors.New(msg)), msg)
	}
	assert.False(t, isConnectionError(nil))
	assert.False(t, isConnectionError(errors.New("PRECONDITION_FAILED - inequivalent arg 'durable'")))
}

func breakerState(c *Client) int32 { return atomic.LoadInt32(&c.state) }

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	c := &Client{exchangeName: "edufund", queueName: "ledger_changes"}
	require.False(t, c.isCircuitOpen())

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	assert.False(t, c.isCircuitOpen(), "one failure short of the threshold")

	c.recordFailure()
	assert.True(t, c.isCircuitOpen())
	assert.Equal(t, StateOpen, breakerState(c))

	c.recordSuccess()
	assert.False(t, c.isCircuitOpen())
	assert.Zero(t, atomic.LoadInt64(&c.failureCount))
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	c := &Client{}
	atomic.StoreInt32(&c.state, StateOpen)

	c.lastFailure = time.Now()
	assert.True(t, c.isCircuitOpen())

	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	assert.False(t, c.isCircuitOpen())
	assert.Equal(t, StateHalfOpen, breakerState(c))

	c.recordFailure()
	assert.Equal(t, StateOpen, breakerState(c), "a failed probe reopens the breaker")
}

func TestPublishShortCircuits(t *testing.T) {
	msg := NewLedgerChangedMessage("donation", "DON-2024-001", "approve", 2)

	open := &Client{}
	atomic.StoreInt32(&open.state, StateOpen)
	open.lastFailure = time.Now()
	err := open.PublishLedgerChanged(context.Background(), msg)
	assert.ErrorContains(t, err, "circuit breaker is open")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, (&Client{}).PublishLedgerChanged(ctx, msg), context.Canceled)
}

func TestLedgerChangedMessage(t *testing.T) {
	a := NewLedgerChangedMessage("funding", "FUND-2024-001", "complete", 3)
	b := NewLedgerChangedMessage("funding", "FUND-2024-001", "complete", 3)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.WithinDuration(t, time.Now(), a.Timestamp, time.Second)

	body, err := a.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"record_id":"FUND-2024-001"`)

	back, err := LedgerChangedMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, a.Kind, back.Kind)
	assert.Equal(t, a.Months, back.Months)
	assert.True(t, a.Timestamp.Equal(back.Timestamp))
}

func TestLedgerChangedMessageRejectsBadBodies(t *testing.T) {
	for name, body := range map[string]string{
		"wrong type": `{"id": 5, "months": "x"}`,
		"missing id": `{"kind": "donation"}`,
		"garbage":    `not json`,
	} {
		_, err := LedgerChangedMessageFromJSON([]byte(body))
		assert.Error(t, err, name)
	}
}
