// Package mqtt accepts sensor reports over MQTT as an alternative to
// the HTTP reporting endpoint.
//
// Devices publish a JSON report to thermhub/<device-id>/report. The
// resulting setpoint and heat command is published back on
// thermhub/<device-id>/state.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/thermhub/thermhub/internal/engine"
)

const (
	reportTopic    = "thermhub/+/report"
	qosAtLeastOnce = 1
)

type Processor interface {
	ProcessReport(ctx context.Context, report engine.Report, now time.Time) (engine.Result, error)
}

type Config struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Ingest struct {
	processor Processor
	client    paho.Client
	logger    *slog.Logger
	now       func() time.Time
}

func New(cfg Config, processor Processor, logger *slog.Logger) *Ingest {
	ingest := Ingest{
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "thermhub"
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true)
	ingest.client = paho.NewClient(opts)
	return &ingest
}

func (i *Ingest) Run(ctx context.Context) error {
	i.logger.Debug("started")
	defer i.logger.Debug("stopped")

	if token := i.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := i.client.Subscribe(reportTopic, qosAtLeastOnce, i.receive); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	<-ctx.Done()
	i.client.Disconnect(250)
	return nil
}

type report struct {
	Token          string `json:"token"`
	Temperature    *int   `json:"temperature"`
	Humidity       *int   `json:"humidity"`
	Hold           *bool  `json:"hold"`
	SetTemperature *int   `json:"setTemperature"`
}

type state struct {
	SetTemperature int  `json:"setTemperature"`
	Hold           bool `json:"hold"`
	HeatOn         bool `json:"heatOn"`
}

func (i *Ingest) receive(_ paho.Client, msg paho.Message) {
	deviceID, err := deviceFromTopic(msg.Topic())
	if err != nil {
		i.logger.Warn("ignoring message", "err", err, "topic", msg.Topic())
		return
	}
	var r report
	if err = json.Unmarshal(msg.Payload(), &r); err != nil {
		i.logger.Warn("ignoring invalid report", "err", err, "device_id", deviceID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := i.processor.ProcessReport(ctx, engine.Report{
		DeviceID:       deviceID,
		Token:          r.Token,
		Temperature:    r.Temperature,
		Humidity:       r.Humidity,
		Hold:           r.Hold,
		SetTemperature: r.SetTemperature,
	}, i.now())
	if err != nil {
		i.logger.Warn("report rejected", "err", err, "device_id", deviceID)
		return
	}

	body, _ := json.Marshal(state{
		SetTemperature: result.SetTemperature,
		Hold:           result.Hold,
		HeatOn:         result.HeatOn,
	})
	i.client.Publish("thermhub/"+deviceID+"/state", qosAtLeastOnce, false, body)
}

func deviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "thermhub" || parts[2] != "report" || parts[1] == "" {
		return "", errors.New("unexpected topic: " + topic)
	}
	return parts[1], nil
}
