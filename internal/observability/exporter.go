package observability

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
)

// ErrMalformedHeader marks an OTLP header entry that is not key=value.
var ErrMalformedHeader = errors.New("malformed OTLP header")

// Exporter is an OTLP gRPC collector.
type Exporter struct {
	// Endpoint is the collector address, e.g. "localhost:4317".
	Endpoint string
	// Insecure disables TLS.
	Insecure bool
	// Headers are sent as gRPC metadata with every export.
	Headers map[string]string
}

// Enabled reports whether an endpoint is configured.
func (e Exporter) Enabled() bool {
	return e.Endpoint != ""
}

func (e Exporter) traceOptions() []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(e.Endpoint)}

	if e.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(e.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(e.Headers))
	}

	return opts
}

func (e Exporter) metricOptions() []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(e.Endpoint)}

	if e.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if len(e.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(e.Headers))
	}

	return opts
}

// ParseHeaders parses exporter headers written the way OTEL_EXPORTER_OTLP_HEADERS
// carries them: comma-separated key=value pairs with percent-encoded values.
func ParseHeaders(raw string) (map[string]string, error) {
	headers := make(map[string]string)

	if strings.TrimSpace(raw) == "" {
		return headers, nil
	}

	for entry := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(entry, "=")

		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, strings.TrimSpace(entry))
		}

		decoded, err := url.QueryUnescape(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrMalformedHeader, key, err)
		}

		headers[key] = decoded
	}

	return headers, nil
}
