package notifier

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thermhub/thermhub/internal/engine"
	"github.com/thermhub/thermhub/internal/store"
	"github.com/thermhub/thermhub/pkg/pubsub"
)

type fakeSender struct {
	lock        sync.Mutex
	attachments []slack.Attachment
}

func (f *fakeSender) PostMessage(_ string, options ...slack.MsgOption) (string, string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	// MsgOption internals aren't inspectable, so just count the calls.
	f.attachments = append(f.attachments, slack.Attachment{})
	return "", "", nil
}

func (f *fakeSender) calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.attachments)
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage(engine.Update{
		DeviceID: "100001",
		Reading:  store.Reading{Temperature: 685, SetTemperature: 700, HeatOn: true},
	})
	assert.Equal(t, "device 100001: heat switched on (68.5°, set 70.0°)", msg)

	msg = buildMessage(engine.Update{
		DeviceID: "100001",
		Reading:  store.Reading{Temperature: 705, SetTemperature: 700},
	})
	assert.Equal(t, "device 100001: heat switched off (70.5°, set 70.0°)", msg)
}

func TestMonitor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := pubsub.New[engine.Update](logger)
	sender := &fakeSender{}
	m := NewMonitor(hub, Notifiers{
		&SLogNotifier{Logger: logger},
		&SlackNotifier{Logger: logger, Sender: sender, Channel: "C12345"},
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error)
	go func() { errCh <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return hub.Subscribers() > 0 }, time.Second, 10*time.Millisecond)

	publish := func(heatOn bool) {
		hub.Publish(engine.Update{
			DeviceID: "100001",
			Reading:  store.Reading{Temperature: 685, SetTemperature: 700, HeatOn: heatOn},
			Appended: true,
		})
	}

	// first report always notifies
	publish(true)
	assert.Eventually(t, func() bool { return sender.calls() == 1 }, time.Second, 10*time.Millisecond)

	// same state: no notification
	publish(true)
	// state change: notification
	publish(false)
	assert.Eventually(t, func() bool { return sender.calls() == 2 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return sender.calls() > 2 }, 100*time.Millisecond, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}
