package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func sampleEvent() FirstClassAttended {
	return FirstClassAttended{
		MemberID:     primitive.NewObjectID(),
		GymID:        primitive.NewObjectID(),
		ProgramID:    "bjj",
		AttendanceID: primitive.NewObjectID(),
		OccurredAt:   time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC),
	}
}

func TestInlineBus_DeliversToAllHandlers(t *testing.T) {
	bus := NewInlineBus()
	var got []string
	bus.Subscribe(func(ctx context.Context, evt FirstClassAttended) error {
		got = append(got, "a:"+evt.ProgramID)
		return nil
	})
	bus.Subscribe(func(ctx context.Context, evt FirstClassAttended) error {
		got = append(got, "b:"+evt.ProgramID)
		return errors.New("billing down")
	})

	err := bus.PublishFirstClassAttended(context.Background(), sampleEvent())
	assert.EqualError(t, err, "billing down")
	assert.Equal(t, []string{"a:bjj", "b:bjj"}, got)
}

func TestInlineBus_NoSubscribers(t *testing.T) {
	assert.NoError(t, NewInlineBus().PublishFirstClassAttended(context.Background(), sampleEvent()))
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}
func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestAMQPConsumer_Deliver(t *testing.T) {
	evt := sampleEvent()
	body, err := json.Marshal(evt)
	require.NoError(t, err)

	t.Run("ack on success", func(t *testing.T) {
		var seen FirstClassAttended
		c := NewAMQPConsumer("amqp://unused", 0, func(ctx context.Context, e FirstClassAttended) error {
			seen = e
			return nil
		})
		ack := &fakeAck{}
		c.deliver(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body})

		assert.True(t, ack.acked)
		assert.Equal(t, evt.MemberID, seen.MemberID)
		assert.True(t, evt.OccurredAt.Equal(seen.OccurredAt))
	})

	t.Run("requeue once on handler failure", func(t *testing.T) {
		c := NewAMQPConsumer("amqp://unused", 0, func(context.Context, FirstClassAttended) error {
			return errors.New("db down")
		})
		first := &fakeAck{}
		c.deliver(context.Background(), amqp.Delivery{Acknowledger: first, Body: body})
		assert.True(t, first.nacked)
		assert.True(t, first.requeued)

		second := &fakeAck{}
		c.deliver(context.Background(), amqp.Delivery{Acknowledger: second, Body: body, Redelivered: true})
		assert.True(t, second.nacked)
		assert.False(t, second.requeued)
	})

	t.Run("drop malformed", func(t *testing.T) {
		called := false
		c := NewAMQPConsumer("amqp://unused", 0, func(context.Context, FirstClassAttended) error {
			called = true
			return nil
		})
		ack := &fakeAck{}
		c.deliver(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
		assert.False(t, called)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})
}
