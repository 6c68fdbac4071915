package telemetry

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// Telemetry owns the meter provider and records relay metrics. It satisfies
// relay.Metrics.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	requests    metric.Int64Counter
	failures    metric.Int64Counter
	pushes      metric.Int64Counter
	connections metric.Int64UpDownCounter
}

// Setup builds a meter provider exporting to a private Prometheus registry.
func Setup(serviceName string, log logrus.FieldLogger) (*Telemetry, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	t := &Telemetry{
		provider: provider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if err := t.instruments(provider.Meter("chat-relay")); err != nil {
		return nil, err
	}
	log.WithField("exporter", "prometheus").Info("telemetry initialized")
	return t, nil
}

func (t *Telemetry) instruments(meter metric.Meter) error {
	var err error
	if t.requests, err = meter.Int64Counter("relay.requests",
		metric.WithDescription("Requests handled by the storage actor")); err != nil {
		return err
	}
	if t.failures, err = meter.Int64Counter("relay.request.failures",
		metric.WithDescription("Requests answered with an error")); err != nil {
		return err
	}
	if t.pushes, err = meter.Int64Counter("relay.pushes",
		metric.WithDescription("Notifications delivered to other sessions")); err != nil {
		return err
	}
	if t.connections, err = meter.Int64UpDownCounter("relay.connections",
		metric.WithDescription("Registered connections")); err != nil {
		return err
	}
	return nil
}

// Handler serves the Prometheus scrape endpoint.
func (t *Telemetry) Handler() http.Handler { return t.handler }

func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

func (t *Telemetry) RequestHandled(kind string, failed bool) {
	attrs := metric.WithAttributes(attribute.String("request", kind))
	ctx := context.Background()
	t.requests.Add(ctx, 1, attrs)
	if failed {
		t.failures.Add(ctx, 1, attrs)
	}
}

func (t *Telemetry) PushesDelivered(kind string, n int) {
	t.pushes.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("request", kind)))
}

func (t *Telemetry) ConnectionsChanged(delta int) {
	t.connections.Add(context.Background(), int64(delta))
}
