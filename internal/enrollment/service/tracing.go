package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/service")

func attemptAttrs(userID, fingerprintID string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("enrollment.user_id", userID),
		attribute.String("enrollment.fingerprint_id", fingerprintID),
	)
}

func spanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
