// Package observability wires OpenTelemetry tracing and metrics.
//
//	tp, err := observability.InitTracer(ctx, cfg)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "pipeline.transcribe")
//	defer span.End()
//
//	metrics, err := observability.NewPipelineMetrics(observability.Meter("meetingflow"))
//	metrics.RecordStage(ctx, "TRANSCRIBING", "ok", time.Since(start))
package observability
