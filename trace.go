package arvos

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "impractical.co/arvos"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// fail marks span as failed with err and returns err.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
