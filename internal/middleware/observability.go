package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medicab/scheduler/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Observe records per-request metrics, emits a structured access log line
// and wraps the request in a trace span.
func Observe(log *zap.Logger, collector *metrics.Collector) gin.HandlerFunc {
	tracer := otel.Tracer("scheduler/http")

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+path,
			oteltrace.WithSpanKind(oteltrace.SpanKindServer),
			oteltrace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", path),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		collector.InFlightGauge.Inc()
		defer collector.InFlightGauge.Dec()

		c.Next()

		status := c.Writer.Status()
		statusStr := strconv.Itoa(status)
		elapsed := time.Since(start)

		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}

		collector.RequestsTotal.WithLabelValues(c.Request.Method, path, statusStr).Inc()
		collector.RequestDuration.WithLabelValues(c.Request.Method, path, statusStr).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}
