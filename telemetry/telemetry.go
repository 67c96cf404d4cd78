// Package telemetry exports spans (and optionally logs) over OTLP/HTTP.
//
// Configuration comes from an optional YAML file with environment variables
// layered on top. Initialize installs the global tracer provider; Runtime then
// hands out a native.Runtime that records spans through it.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/amp-labs/llmtrace/envutil"
	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/native/otelnative"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"gopkg.in/yaml.v3"
)

const (
	defaultServiceVersion = "1.0.0"
	defaultTimeout        = 5 * time.Second

	// gkeCollectorEndpoint is the in-cluster OpenTelemetry collector.
	gkeCollectorEndpoint = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"
)

//nolint:gochecknoglobals
var (
	providersMu    sync.Mutex
	tracerProvider *sdktrace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string        `yaml:"serviceName"`
	ServiceVersion string        `yaml:"serviceVersion"`
	Environment    string        `yaml:"environment"`
	Endpoint       string        `yaml:"endpoint"`
	Enabled        bool          `yaml:"enabled"`
	Timeout        time.Duration `yaml:"timeout"`

	// LogsEnabled also ships slog records to the collector.
	LogsEnabled  bool   `yaml:"logsEnabled"`
	LogsEndpoint string `yaml:"logsEndpoint"`
}

// LoadConfigFile reads a YAML config file. Missing fields keep their zero value.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry config %s: %w", path, err)
	}

	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse telemetry config %s: %w", path, err)
	}

	return &config, nil
}

// LoadConfigFromEnv loads OpenTelemetry configuration from environment variables.
func LoadConfigFromEnv(ctx context.Context, runningEnv string) (*Config, error) {
	return overlayEnv(ctx, &Config{Environment: runningEnv})
}

// LoadConfig reads path (if not empty) and then applies environment variables
// on top of it. An environment variable always wins over the file.
func LoadConfig(ctx context.Context, runningEnv, path string) (*Config, error) {
	base := &Config{}

	if path != "" {
		fromFile, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}

		base = fromFile
	}

	if base.Environment == "" {
		base.Environment = runningEnv
	}

	return overlayEnv(ctx, base)
}

func overlayEnv(ctx context.Context, base *Config) (*Config, error) {
	enabled, err := boolOr(ctx, "OTEL_ENABLED", base.Enabled)
	if err != nil {
		return nil, err
	}

	// Default to GKE OpenTelemetry collector endpoint if running in GKE
	defaultEndpoint := base.Endpoint
	if defaultEndpoint == "" && envutil.String(ctx, "KUBERNETES_SERVICE_HOST").ValueOrElse("") != "" {
		defaultEndpoint = gkeCollectorEndpoint
	}

	defaultName := base.ServiceName
	if defaultName == "" {
		defaultName = logger.GetSubsystem(ctx)
	}

	svcName := stringOr(ctx, "OTEL_SERVICE_NAME", defaultName)

	defaultVersion := base.ServiceVersion
	if defaultVersion == "" {
		defaultVersion = defaultServiceVersion
	}

	svcVersion := stringOr(ctx, "OTEL_SERVICE_VERSION", defaultVersion)

	endpoint := stringOr(ctx, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", defaultEndpoint)

	defaultTimeoutValue := base.Timeout
	if defaultTimeoutValue <= 0 {
		defaultTimeoutValue = defaultTimeout
	}

	timeout, err := durationOr(ctx, "OTEL_EXPORTER_OTLP_TRACES_TIMEOUT", defaultTimeoutValue)
	if err != nil {
		return nil, err
	}

	logsEnabled, err := boolOr(ctx, "OTEL_LOGS_ENABLED", base.LogsEnabled)
	if err != nil {
		return nil, err
	}

	logsEndpoint := stringOr(ctx, "OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", base.LogsEndpoint)

	return &Config{
		ServiceName:    svcName,
		ServiceVersion: svcVersion,
		Environment:    base.Environment,
		Endpoint:       endpoint,
		Enabled:        enabled,
		Timeout:        timeout,
		LogsEnabled:    logsEnabled,
		LogsEndpoint:   logsEndpoint,
	}, nil
}

// stringOr reads a string variable, treating an empty value like an unset one.
func stringOr(ctx context.Context, key, defaultValue string) string {
	if value := envutil.String(ctx, key).ValueOrElse(""); value != "" {
		return value
	}

	return defaultValue
}

func boolOr(ctx context.Context, key string, defaultValue bool) (bool, error) {
	if stringOr(ctx, key, "") == "" {
		return defaultValue, nil
	}

	return envutil.Bool(ctx, key).Value()
}

func durationOr(ctx context.Context, key string, defaultValue time.Duration) (time.Duration, error) {
	if stringOr(ctx, key, "") == "" {
		return defaultValue, nil
	}

	return envutil.Duration(ctx, key).Value()
}

// Initialize sets up OpenTelemetry tracing (and log export, if enabled) with
// the given configuration.
func Initialize(ctx context.Context, config *Config) error {
	if config == nil || !config.Enabled {
		slog.Info("OpenTelemetry tracing is disabled")

		return nil
	}

	if config.Endpoint == "" {
		slog.Warn("OpenTelemetry endpoint not configured, tracing will be disabled")

		return nil
	}

	// Create resource with service information
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	providersMu.Lock()
	tracerProvider = tp
	providersMu.Unlock()

	otel.SetTracerProvider(tp)

	// Set the global propagator to support trace context propagation
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.LogsEnabled {
		if err := initializeLogs(ctx, config, res); err != nil {
			return err
		}
	}

	slog.Info("OpenTelemetry tracing initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"endpoint", config.Endpoint,
		"logs", config.LogsEnabled,
	)

	return nil
}

// initializeLogs ships slog records to the collector next to the local output.
func initializeLogs(ctx context.Context, config *Config, res *resource.Resource) error {
	endpoint := config.LogsEndpoint
	if endpoint == "" {
		endpoint = config.Endpoint
	}

	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(endpoint),
		otlploghttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)

	providersMu.Lock()
	loggerProvider = lp
	providersMu.Unlock()

	global.SetLoggerProvider(lp)

	logger.AttachHandler(otelslog.NewHandler(config.ServiceName, otelslog.WithLoggerProvider(lp)))

	return nil
}

// Runtime returns a runtime that records spans through the global tracer
// provider. Before Initialize (or when tracing is disabled) the spans go to
// OpenTelemetry's no-op provider.
func Runtime(instrumentationName string) *otelnative.Runtime {
	return otelnative.New(otel.Tracer(instrumentationName))
}

// Shutdown flushes and shuts down the providers created by Initialize.
func Shutdown(ctx context.Context) error {
	providersMu.Lock()
	tp, lp := tracerProvider, loggerProvider
	tracerProvider, loggerProvider = nil, nil
	providersMu.Unlock()

	var errs []error

	if tp != nil {
		slog.Info("Shutting down OpenTelemetry tracer provider")

		errs = append(errs, tp.Shutdown(ctx))
	}

	if lp != nil {
		slog.Info("Shutting down OpenTelemetry logger provider")

		errs = append(errs, lp.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
