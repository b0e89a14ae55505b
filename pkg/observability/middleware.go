package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HeaderTraceID echoes the request's trace id back to the client.
	HeaderTraceID = "X-Trace-Id"

	// opUnmatched names requests no route pattern claimed.
	opUnmatched = "unmatched"
	opInflight  = "http"
)

// recorder remembers the first status code written through it.
type recorder struct {
	http.ResponseWriter

	status int
}

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}

	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(buf []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	return r.ResponseWriter.Write(buf) //nolint:wrapcheck // transparent writer
}

func (r *recorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

// HTTPMiddleware traces each request and records RED metrics when red is
// non-nil. Incoming W3C trace context is honored. Spans and metrics are named
// after the ServeMux route pattern that served the request, so path values
// such as checkpoint ids never reach metric labels.
func HTTPMiddleware(tracer trace.Tracer, red *REDMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		start := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))
		ctx, span := tracer.Start(ctx, hr.Method+" "+opUnmatched,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				semconv.URLPath(hr.URL.Path),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			rw.Header().Set(HeaderTraceID, sc.TraceID().String())
		}

		done := red.TrackInflight(ctx, opInflight)
		defer done()

		rec := &recorder{ResponseWriter: rw}
		routed := hr.WithContext(ctx)

		next.ServeHTTP(rec, routed)

		op := opUnmatched
		if routed.Pattern != "" {
			op = routed.Pattern
			span.SetAttributes(semconv.HTTPRoute(routed.Pattern))
		}

		span.SetName(op)
		span.SetAttributes(semconv.HTTPResponseStatusCode(rec.code()))

		status := StatusOK
		if rec.code() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.code()))

			status = StatusError
		}

		red.RecordRequest(ctx, op, status, time.Since(start))
	})
}
