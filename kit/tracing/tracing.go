// Package tracing holds the opentracing helpers shared by the commit path
// and its HTTP transport. Spans go to opentracing.GlobalTracer, which is a
// no-op until a process installs a tracer.
package tracing

import (
	"context"
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
)

// LogError adds a span log for an error and marks the span as failed.
// Returns unchanged error, so useful to wrap as in:
//
//	return tracing.LogError(span, err)
func LogError(span opentracing.Span, err error) error {
	if err == nil {
		return nil
	}
	ext.Error.Set(span, true)
	span.LogFields(log.Error(err))
	return err
}

// StartSpanFromContext starts a span named op, child of the span in ctx if any.
func StartSpanFromContext(ctx context.Context, op string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, op)
}

// InjectToHTTPRequest adds the tracing headers of the span in the request's
// context, if any, to req.
func InjectToHTTPRequest(req *http.Request) {
	span := opentracing.SpanFromContext(req.Context())
	if span == nil {
		return
	}
	err := opentracing.GlobalTracer().Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))
	if err != nil {
		span.LogFields(log.String("trace-inject-error", err.Error()))
	}
}

// ExtractFromHTTPRequest starts a span for req named after the handler and
// path. The span is a child of the one referenced in the request headers
// when there is one. The returned request carries the span in its context.
func ExtractFromHTTPRequest(req *http.Request, handlerName string) (opentracing.Span, *http.Request) {
	op := handlerName + ":" + req.URL.Path
	opts := []opentracing.StartSpanOption{ext.SpanKindRPCServer}

	spanContext, err := opentracing.GlobalTracer().Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))
	if err == nil {
		opts = append(opts, opentracing.ChildOf(spanContext))
	}

	span := opentracing.StartSpan(op, opts...)
	if err != nil && err != opentracing.ErrSpanContextNotFound {
		span.LogFields(log.String("trace-extract-error", err.Error()))
	}
	return span, req.WithContext(opentracing.ContextWithSpan(req.Context(), span))
}

// Middleware wraps next so that every request is served inside a span.
func Middleware(handlerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span, r := ExtractFromHTTPRequest(r, handlerName)
			defer span.Finish()
			ext.HTTPMethod.Set(span, r.Method)
			next.ServeHTTP(w, r)
		})
	}
}
