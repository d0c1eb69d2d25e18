// Package transport implements the authenticated request pipeline: an
// http.RoundTripper that attaches the stored access token and, on a 401,
// refreshes it once and replays the request.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pilab-dev/cartbuilder/internal/metrics"
	"github.com/pilab-dev/cartbuilder/log"
	"github.com/pilab-dev/cartbuilder/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries a per-call id; a replayed request keeps the id of
// the first attempt.
const RequestIDHeader = "X-Request-ID"

const tracerName = "github.com/pilab-dev/cartbuilder/transport"

// attempt describes one send of a logical request. Only the first attempt
// may trigger a refresh, so a request is replayed at most once.
type attempt struct {
	number     int
	canRefresh bool
}

var (
	firstAttempt = attempt{number: 0, canRefresh: true}
	replay       = attempt{number: 1, canRefresh: false}
)

// AuthTransport is the authenticated pipeline. The caller's request is never
// modified; every attempt sends a clone.
type AuthTransport struct {
	base       http.RoundTripper
	sessions   *session.Manager
	logger     log.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	newID      func() string
}

// Option configures an AuthTransport.
type Option func(*AuthTransport)

// WithBase sets the transport requests are finally sent with.
func WithBase(rt http.RoundTripper) Option {
	return func(t *AuthTransport) { t.base = rt }
}

func WithLogger(l log.Logger) Option {
	return func(t *AuthTransport) { t.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *AuthTransport) { t.metrics = m }
}

// WithTracerProvider sets where request spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *AuthTransport) { t.tracer = tp.Tracer(tracerName) }
}

// NewAuthTransport creates the pipeline on top of sessions.
func NewAuthTransport(sessions *session.Manager, opts ...Option) *AuthTransport {
	t := &AuthTransport{
		base:       http.DefaultTransport,
		sessions:   sessions,
		logger:     log.NewNop(),
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
		propagator: otel.GetTextMapPropagator(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
//
// A request sent without a credential is never refreshed: its 401 is
// returned as is. A request sent with a credential that comes back 401
// triggers one refresh; on success it is replayed once with the new token,
// on failure the original 401 response is returned with its body intact.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPMethod(req.Method),
			semconv.HTTPURL(req.URL.String()),
		),
	)
	defer span.End()

	getBody, err := replayableBody(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read request body")
		return nil, err
	}

	requestID := t.newID()
	span.SetAttributes(attribute.String("http.request_id", requestID))
	logger := t.logger.With(map[string]interface{}{
		"request_id": requestID,
		"method":     req.Method,
		"path":       req.URL.Path,
	})

	token, err := t.sessions.AccessToken(ctx)
	if err != nil {
		// An unreadable store behaves like a logged-out one.
		logger.Warn(ctx, "Could not read access token, sending request anonymously", map[string]interface{}{
			"error": err.Error(),
		})
		token = ""
	}

	a := firstAttempt
	for {
		resp, err := t.send(ctx, req, getBody, requestID, token, a)
		if err != nil {
			t.metrics.Request(metrics.OutcomeNetworkError)
			span.RecordError(err)
			span.SetStatus(codes.Error, "transport error")
			return nil, err
		}

		if resp.StatusCode != http.StatusUnauthorized || token == "" || !a.canRefresh {
			t.finish(span, resp, a)
			return resp, nil
		}

		logger.Debug(ctx, "Access token rejected, refreshing", map[string]interface{}{
			"access": log.RedactToken(token),
		})

		original, err := bufferResponse(resp)
		if err != nil {
			t.metrics.Request(metrics.OutcomeNetworkError)
			span.RecordError(err)
			span.SetStatus(codes.Error, "read 401 body")
			return nil, err
		}

		fresh, err := t.sessions.Refresh(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				original.Body.Close()
				t.metrics.Request(metrics.OutcomeNetworkError)
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, "cancelled during refresh")
				return nil, ctx.Err()
			}
			logger.Warn(ctx, "Token refresh failed, returning original 401", map[string]interface{}{
				"error": err.Error(),
			})
			span.RecordError(err)
			t.finish(span, original, a)
			return original, nil
		}

		original.Body.Close()
		span.SetAttributes(attribute.Bool("http.retried", true))
		token = fresh
		a = replay
	}
}

func (t *AuthTransport) send(ctx context.Context, req *http.Request, getBody func() (io.ReadCloser, error), requestID, token string, a attempt) (*http.Response, error) {
	out := req.Clone(ctx)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
		out.GetBody = getBody
	}

	out.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	t.propagator.Inject(ctx, propagation.HeaderCarrier(out.Header))

	trace.SpanFromContext(ctx).AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt.number", a.number),
		attribute.Bool("attempt.authenticated", token != ""),
	))

	return t.base.RoundTrip(out)
}

func (t *AuthTransport) finish(span trace.Span, resp *http.Response, a attempt) {
	span.SetAttributes(semconv.HTTPStatusCode(resp.StatusCode))
	outcome := metrics.OutcomeSuccess
	switch {
	case resp.StatusCode >= http.StatusBadRequest:
		span.SetStatus(codes.Error, resp.Status)
		outcome = metrics.OutcomeHTTPError
	case a.number > 0:
		outcome = metrics.OutcomeRetried
	}
	t.metrics.Request(outcome)
}

// replayableBody returns a function producing fresh copies of the request
// body, reading it into memory when the request cannot replay it itself.
// The caller's body is closed in both cases.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		// Every attempt sends a fresh copy; the original still has to be closed.
		req.Body.Close()
		return req.GetBody, nil
	}

	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}, nil
}

// bufferResponse reads resp's body into memory so the response can still be
// handed to the caller after the connection is released.
func bufferResponse(resp *http.Response) (*http.Response, error) {
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	resp.ContentLength = int64(len(raw))
	return resp, nil
}
