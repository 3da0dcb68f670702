package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/legisync/internal/domain"
)

func TestRoutingKeys(t *testing.T) {
	assert.Equal(t, RoutingKey("senators.EXTRACTING"), RoutingKeyFor("senators", "EXTRACTING"))
	assert.Equal(t, RoutingKey("a_b.DONE"), RoutingKeyFor("a.b", "DONE"))
	assert.Equal(t, RoutingKey("unknown.DONE"), RoutingKeyFor(" ", "DONE"))

	assert.Equal(t, RoutingKey("#"), BindingKey(""))
	assert.Equal(t, RoutingKey("votes.*"), BindingKey("votes"))
}

func TestMessageRoundTrip(t *testing.T) {
	ev := ProgressPayload{
		RunID:   uuid.New(),
		Entity:  "committees",
		Stage:   domain.StatusLoading,
		Percent: 80,
		At:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	msg, err := NewMessage(MessageTypeProgress, ev)
	require.NoError(t, err)

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	d, err := Decode(amqp.Delivery{Body: body, RoutingKey: "committees.LOADING"})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeProgress, d.Message.Type)
	assert.Equal(t, RoutingKey("committees.LOADING"), d.RoutingKey)

	got, err := ParsePayload[ProgressPayload](&d.Message)
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	_, err = Decode(amqp.Delivery{Body: []byte("not json")})
	assert.Error(t, err)
}

type fakePublisher struct {
	events []ProgressPayload
	err    error
}

func (f *fakePublisher) PublishProgress(ctx context.Context, ev ProgressPayload) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	f.events = append(f.events, ev)
	return f.err
}

func TestProgressSink(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &fakePublisher{}
	runID := uuid.New()

	sink := ProgressSink(pub, runID, "senators", logger)
	sink(domain.ProgressEvent{Stage: domain.StatusExtracting, Percent: 30, Message: "fetched 3/10"})
	sink(domain.ProgressEvent{Stage: domain.StatusDone, Percent: 100})

	require.Len(t, pub.events, 2)
	assert.Equal(t, runID, pub.events[0].RunID)
	assert.Equal(t, "senators", pub.events[0].Entity)
	assert.Equal(t, 30.0, pub.events[0].Percent)
	assert.Equal(t, domain.StatusDone, pub.events[1].Stage)

	// Ошибки брокера не паникуют и не блокируют
	pub.err = errors.New("broker down")
	sink(domain.ProgressEvent{Stage: domain.StatusFailed})
	sink(domain.ProgressEvent{Stage: domain.StatusFailed})
	assert.Len(t, pub.events, 4)
}

func TestDefaultURL(t *testing.T) {
	assert.Contains(t, DefaultURL(), "amqp://")
}
