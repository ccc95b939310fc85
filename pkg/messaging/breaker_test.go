package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

type failingPublisher struct {
	calls int
	err   error
}

func (p *failingPublisher) Publish(ctx context.Context, msg Message) error {
	p.calls++
	return p.err
}

func (p *failingPublisher) Close() error { return nil }

func TestBreakerPublisher_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &failingPublisher{err: errors.New("broker down")}
	p := NewBreakerPublisher(next, BreakerSettings{
		Name:                "test",
		ConsecutiveFailures: 2,
		OpenTimeout:         time.Minute,
	}, nil)

	ctx := context.Background()
	assert.Error(t, p.Publish(ctx, Message{ID: "1"}))
	assert.Error(t, p.Publish(ctx, Message{ID: "2"}))
	assert.Equal(t, gobreaker.StateOpen, p.State())

	err := p.Publish(ctx, Message{ID: "3"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerPublisher_PassesThroughSuccess(t *testing.T) {
	next := &failingPublisher{}
	p := NewBreakerPublisher(next, BreakerSettings{Name: "ok"}, nil)

	assert.NoError(t, p.Publish(context.Background(), Message{ID: "1"}))
	assert.Equal(t, gobreaker.StateClosed, p.State())
	assert.Equal(t, 1, next.calls)
}
