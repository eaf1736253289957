// Package serve implements the thermhub server command.
package serve

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thermhub/thermhub/internal/collector"
	"github.com/thermhub/thermhub/internal/engine"
	"github.com/thermhub/thermhub/internal/health"
	"github.com/thermhub/thermhub/internal/history"
	"github.com/thermhub/thermhub/internal/ledger"
	"github.com/thermhub/thermhub/internal/mqtt"
	"github.com/thermhub/thermhub/internal/notifier"
	"github.com/thermhub/thermhub/internal/server"
	"github.com/thermhub/thermhub/internal/sheets"
	"github.com/thermhub/thermhub/internal/store/memstore"
	"github.com/thermhub/thermhub/internal/timezone"
	"golang.org/x/sync/errgroup"

	"github.com/slack-go/slack"
)

var Cmd = cobra.Command{
	Use:   "serve",
	Short: "Run the thermostat controller",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), viper.GetViper(), cmd.Root().Version)
	},
}

type task interface {
	Run(ctx context.Context) error
}

func run(ctx context.Context, cfg *viper.Viper, version string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts slog.HandlerOptions
	if cfg.GetBool("debug") {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &opts))
	logger.Info("starting thermhub", "version", version)

	tasks, handlers, err := assemble(cfg, logger)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		group.Go(func() error { return t.Run(ctx) })
	}
	for addr, handler := range handlers {
		group.Go(func() error { return runServer(ctx, addr, handler) })
	}
	return group.Wait()
}

func assemble(cfg *viper.Viper, logger *slog.Logger) ([]task, map[string]http.Handler, error) {
	devices, err := memstore.New(cfg.GetString("store.path"), logger.With("component", "store"))
	if err != nil {
		return nil, nil, err
	}

	source := sheets.New(logger.With("component", "sheets"))
	if u := cfg.GetString("sheets.url"); u != "" {
		source.BaseURL = u
	}

	zones := timezone.Defaults()
	controller := engine.New(devices, source, zones, logger.With("component", "engine"))
	tasks := make([]task, 0)

	// Prometheus collector
	coll := &collector.Collector{Updates: controller.Hub, Logger: logger.With("component", "collector")}
	prometheus.MustRegister(coll)
	tasks = append(tasks, coll)

	// Health endpoint
	h := health.New(controller.Hub, logger.With("component", "health"))
	tasks = append(tasks, h)

	// Heat change notifications
	notifiers := notifier.Notifiers{notifier.SLogNotifier{Logger: logger.With("component", "notifier")}}
	if token := cfg.GetString("slack.token"); token != "" {
		notifiers = append(notifiers, &notifier.SlackNotifier{
			Logger:  logger.With("component", "slack"),
			Sender:  slack.New(token),
			Channel: cfg.GetString("slack.channel"),
		})
	}
	tasks = append(tasks, notifier.NewMonitor(controller.Hub, notifiers, logger.With("component", "monitor")))

	// Long-term reading history
	if url := cfg.GetString("influx.url"); url != "" {
		tasks = append(tasks, history.New(history.Config{
			URL:    url,
			Token:  cfg.GetString("influx.token"),
			Org:    cfg.GetString("influx.org"),
			Bucket: cfg.GetString("influx.bucket"),
		}, controller.Hub, logger.With("component", "history")))
	}

	// Reading ledger
	if brokers := cfg.GetString("kafka.brokers"); brokers != "" {
		tasks = append(tasks, ledger.New(ledger.Config{
			Brokers: strings.Split(brokers, ","),
			Topic:   cfg.GetString("kafka.topic"),
		}, controller.Hub, logger.With("component", "ledger")))
	}

	// MQTT report ingestion
	if broker := cfg.GetString("mqtt.broker"); broker != "" {
		tasks = append(tasks, mqtt.New(mqtt.Config{
			Broker:   broker,
			ClientID: cfg.GetString("mqtt.client_id"),
			Username: cfg.GetString("mqtt.username"),
			Password: cfg.GetString("mqtt.password"),
		}, controller, logger.With("component", "mqtt")))
	}

	// API server
	api, err := server.New(controller, devices, zones, server.AuthConfig{
		Secret:   cfg.GetString("auth.secret"),
		Issuer:   cfg.GetString("auth.issuer"),
		Audience: cfg.GetString("auth.audience"),
	}, logger.With("component", "server"))
	if err != nil {
		return nil, nil, err
	}
	api = instrument(api)

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", h)

	servers := map[string]http.Handler{
		cfg.GetString("server.addr"):   api,
		cfg.GetString("exporter.addr"): promhttp.Handler(),
		cfg.GetString("health.addr"):   healthMux,
	}
	return tasks, servers, nil
}

// instrument wraps the API with request count and duration metrics.
func instrument(next http.Handler) http.Handler {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thermhub_http_requests_total",
		Help: "Number of API requests",
	}, []string{"code", "method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thermhub_http_request_duration_seconds",
		Help:    "API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"code", "method"})
	prometheus.MustRegister(requests, duration)
	return promhttp.InstrumentHandlerDuration(duration, promhttp.InstrumentHandlerCounter(requests, next))
}

func runServer(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error)
	go func() {
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
