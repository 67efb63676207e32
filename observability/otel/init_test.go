package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitRequiresEndpointForExport(t *testing.T) {
	_, err := Init(context.Background(), Config{ServiceName: "mirrord", Traces: true})
	require.ErrorIs(t, err, ErrNoEndpoint)
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "mirrord", Environment: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestResourceNamesMirrorInstrumentation(t *testing.T) {
	res, err := newResource(Config{ServiceName: "mirrord", Environment: "prod"})
	require.NoError(t, err)

	attrs := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	require.Equal(t, "mirrord", attrs[semconv.ServiceNameKey])
	require.Equal(t, "prod", attrs[semconv.DeploymentEnvironmentKey])
	require.Equal(t, Scope, attrs["nodemirror.tracer"])
	require.Equal(t, Scope, attrs["nodemirror.meter"])
	require.NotEmpty(t, attrs[semconv.ServiceInstanceIDKey])

	other, err := newResource(Config{ServiceName: "mirrord"})
	require.NoError(t, err)
	id, _ := other.Set().Value(semconv.ServiceInstanceIDKey)
	require.NotEqual(t, attrs[semconv.ServiceInstanceIDKey], id.Emit())
}

func TestSampler(t *testing.T) {
	require.Equal(t, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description(), Config{}.sampler().Description())
	require.Contains(t, Config{Sampling: 0.5}.sampler().Description(), "TraceIDRatioBased{0.5}")
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization=Bearer x , bad, =empty,tenant=eu")
	require.Equal(t, map[string]string{"authorization": "Bearer x", "tenant": "eu"}, got)
}
