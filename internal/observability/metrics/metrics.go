package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes business-level instruments for the financial workflow.
type Metrics struct {
	ordersCreated    metric.Int64Counter
	orderItemChanges metric.Int64Counter
	invoiceLinks     metric.Int64Counter
	paymentsCreated  metric.Int64Counter
	paymentsReviewed metric.Int64Counter
	loginAttempts    metric.Int64Counter
	totalDrift       metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "visadesk"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
	}{
		{&m.ordersCreated, "visadesk_orders_created_total"},
		{&m.orderItemChanges, "visadesk_order_item_changes_total"},
		{&m.invoiceLinks, "visadesk_invoice_order_links_total"},
		{&m.paymentsCreated, "visadesk_payments_created_total"},
		{&m.paymentsReviewed, "visadesk_payments_reviewed_total"},
		{&m.loginAttempts, "visadesk_login_attempts_total"},
		{&m.totalDrift, "visadesk_order_total_drift_total"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return m, nil
}

// NewNoop returns instruments bound to a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, items int) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
	m.orderItemChanges.Add(ctx, int64(items), metric.WithAttributes(FilterAttributes(attribute.String("kind", "add"))...))
}

// RecordOrderItemChange counts item mutations; kind is add, update or delete.
func (m *Metrics) RecordOrderItemChange(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.orderItemChanges.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))...))
}

// RecordOrderTotalDrift counts orders whose incremental total disagreed with their items.
func (m *Metrics) RecordOrderTotalDrift(ctx context.Context) {
	if m == nil {
		return
	}
	m.totalDrift.Add(ctx, 1)
}

// RecordInvoiceLink counts link changes; kind is link or unlink.
func (m *Metrics) RecordInvoiceLink(ctx context.Context, kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.invoiceLinks.Add(ctx, int64(count), metric.WithAttributes(FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))...))
}

func (m *Metrics) RecordPaymentCreated(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.paymentsCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("method", strings.TrimSpace(method)))...))
}

func (m *Metrics) RecordPaymentReviewed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.paymentsReviewed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))...))
}

// RecordLoginAttempt counts logins by result: success, failure or limited.
func (m *Metrics) RecordLoginAttempt(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("result", strings.TrimSpace(result)))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":    {},
	"method":  {},
	"outcome": {},
	"result":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
