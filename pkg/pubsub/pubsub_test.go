package pubsub

import (
	"github.com/stretchr/testify/assert"
	"log/slog"
	"sync"
	"testing"
)

func TestHub(t *testing.T) {
	h := New[string](slog.Default())

	const clients = 5
	var chs []chan string
	for range clients {
		chs = append(chs, h.Subscribe())
	}
	assert.Equal(t, clients, h.Subscribers())

	go h.Publish("heat on")

	var wg sync.WaitGroup
	wg.Add(len(chs))
	for _, ch := range chs {
		go func(ch chan string) {
			defer wg.Done()
			assert.Equal(t, "heat on", <-ch)
			h.Unsubscribe(ch)
		}(ch)
	}
	wg.Wait()

	assert.Zero(t, h.Subscribers())
}
