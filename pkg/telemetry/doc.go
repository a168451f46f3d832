// Package telemetry provides logging, tracing, metrics and event
// publishing for xeq.
//
// Logging uses zerolog, tracing OpenTelemetry with stdout or OTLP
// exporters, and metrics Prometheus. Metrics implements
// equation.Recorder, and EventPublisher.Bridge republishes manager
// notifications as Events with uuid ids:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	m, err := equation.New(engine,
//	    equation.WithLogger(tel.Logger.Zerolog()),
//	    equation.WithMetrics(tel.Metrics),
//	)
//	detach := tel.Events.Bridge(m, "budget")
//	defer detach()
//
// A workbook run is wrapped with WithWorkbookContext and
// EndWorkbookContext; smaller steps use StartOperation.
package telemetry
