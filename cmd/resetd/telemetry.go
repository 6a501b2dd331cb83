package main

import (
	"context"
	"errors"
	"time"

	goReset "github.com/MrEthical07/goReset"
	resetotel "github.com/MrEthical07/goReset/metrics/export/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
)

// setupOTel pushes engine metrics to an OTLP collector every 10s.
func setupOTel(ctx context.Context, endpoint string, engine *goReset.Engine) (func(context.Context) error, error) {
	exp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	reader := metric.NewPeriodicReader(exp, metric.WithInterval(10*time.Second))
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	bridge, err := resetotel.NewOTelExporter(mp.Meter("github.com/MrEthical07/goReset"), engine)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(bridge.Close(), mp.Shutdown(ctx))
	}, nil
}
