package ledger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thermhub/thermhub/internal/engine"
	"github.com/thermhub/thermhub/internal/store"
	"github.com/thermhub/thermhub/pkg/pubsub"
)

type fakeWriter struct {
	lock     sync.Mutex
	messages []kafka.Message
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) count() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.messages)
}

func TestLedger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := pubsub.New[engine.Update](logger)
	writer := &fakeWriter{}
	l := &Ledger{updates: hub, writer: writer, logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error)
	go func() { errCh <- l.Run(ctx) }()

	assert.Eventually(t, func() bool { return hub.Subscribers() > 0 }, time.Second, 10*time.Millisecond)

	reading := store.Reading{
		Time:           time.Date(2025, time.March, 24, 16, 0, 0, 0, time.UTC),
		Temperature:    685,
		Humidity:       425,
		SetTemperature: 700,
		HeatOn:         true,
		NumAveraged:    1,
	}
	hub.Publish(engine.Update{DeviceID: "100001", Reading: reading, Appended: true})
	hub.Publish(engine.Update{DeviceID: "100001", Reading: reading, Appended: false})

	assert.Eventually(t, func() bool { return writer.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return writer.count() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	writer.lock.Lock()
	msg := writer.messages[0]
	writer.lock.Unlock()
	assert.Equal(t, "100001", string(msg.Key))
	var r record
	require.NoError(t, json.Unmarshal(msg.Value, &r))
	assert.Equal(t, "100001", r.DeviceID)
	assert.True(t, reading.Time.Equal(r.Reading.Time))
	r.Reading.Time = reading.Time
	assert.Equal(t, reading, r.Reading)

	cancel()
	require.NoError(t, <-errCh)
	assert.True(t, writer.closed)
}
