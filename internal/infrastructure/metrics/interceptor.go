package metrics

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Decision outcomes
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// DecisionResponse is implemented by responses that answer an authorization question.
type DecisionResponse interface {
	IsAllowed() bool
}

// UnaryServerInterceptor returns a gRPC interceptor that records metrics for each request.
// Errors are counted by gRPC status code and, for responses implementing
// DecisionResponse, the allowed/denied outcome is counted as well.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		method := info.FullMethod

		collector.RecordRequest(method)
		if exporter != nil {
			exporter.RecordRequest(method)
		}

		resp, err := handler(ctx, req)

		duration := time.Since(start).Seconds()
		collector.RecordDuration(method, duration)
		if exporter != nil {
			exporter.RecordDuration(method, duration)
		}

		if err != nil {
			code := status.Code(err).String()
			collector.RecordError(method, code)
			if exporter != nil {
				exporter.RecordError(method, code)
			}
			return resp, err
		}

		if decision, ok := resp.(DecisionResponse); ok {
			outcome := OutcomeDenied
			if decision.IsAllowed() {
				outcome = OutcomeAllowed
			}
			collector.RecordDecision(outcome)
			if exporter != nil {
				exporter.RecordDecision(method, outcome)
			}
		}

		return resp, err
	}
}
