// Package collector exports the latest state of every reporting device
// as Prometheus metrics.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thermhub/thermhub/internal/engine"
	"github.com/thermhub/thermhub/internal/store"
)

var (
	deviceTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("thermhub", "device", "temperature"),
		"Last reported temperature, in degrees",
		[]string{"device_id"},
		nil,
	)
	deviceHumidity = prometheus.NewDesc(
		prometheus.BuildFQName("thermhub", "device", "humidity_percent"),
		"Last reported relative humidity (0-100)",
		[]string{"device_id"},
		nil,
	)
	deviceSetTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("thermhub", "device", "set_temperature"),
		"Current set temperature, in degrees",
		[]string{"device_id"},
		nil,
	)
	deviceHeatOn = prometheus.NewDesc(
		prometheus.BuildFQName("thermhub", "device", "heat_on"),
		"1 if the device's heating is on",
		[]string{"device_id"},
		nil,
	)
	deviceHold = prometheus.NewDesc(
		prometheus.BuildFQName("thermhub", "device", "hold"),
		"1 if the device is holding its set temperature, ignoring the schedule",
		[]string{"device_id"},
		nil,
	)
)

// Updates is where the collector gets its device state from.
type Updates interface {
	Subscribe() chan engine.Update
	Unsubscribe(chan engine.Update)
}

var _ prometheus.Collector = &Collector{}

// Collector tracks the latest reading per device and implements
// prometheus.Collector.
type Collector struct {
	Updates Updates
	Logger  *slog.Logger
	lock    sync.RWMutex
	latest  map[string]store.Reading
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Updates.Subscribe()
	defer c.Updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.lock.Lock()
			if c.latest == nil {
				c.latest = make(map[string]store.Reading)
			}
			c.latest[update.DeviceID] = update.Reading
			c.lock.Unlock()
		}
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- deviceTemperature
	ch <- deviceHumidity
	ch <- deviceSetTemperature
	ch <- deviceHeatOn
	ch <- deviceHold
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	for id, reading := range c.latest {
		ch <- prometheus.MustNewConstMetric(deviceTemperature, prometheus.GaugeValue, float64(reading.Temperature)/10, id)
		ch <- prometheus.MustNewConstMetric(deviceHumidity, prometheus.GaugeValue, float64(reading.Humidity)/10, id)
		ch <- prometheus.MustNewConstMetric(deviceSetTemperature, prometheus.GaugeValue, float64(reading.SetTemperature)/10, id)
		ch <- prometheus.MustNewConstMetric(deviceHeatOn, prometheus.GaugeValue, boolValue(reading.HeatOn), id)
		ch <- prometheus.MustNewConstMetric(deviceHold, prometheus.GaugeValue, boolValue(reading.Hold), id)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
