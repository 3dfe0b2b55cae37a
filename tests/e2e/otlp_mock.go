package e2e

import (
	"context"
	"net"
	"sync"
	"testing"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
)

// mockTraceCollector is an in-process OTLP/gRPC trace receiver used to verify
// what the service actually exports.
type mockTraceCollector struct {
	collectortrace.UnimplementedTraceServiceServer

	t      *testing.T
	mu     sync.Mutex
	spans  []*tracepb.Span
	notify chan struct{}
}

func startMockTraceCollector(t *testing.T) (*mockTraceCollector, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start OTLP listener: %v", err)
	}

	collector := &mockTraceCollector{
		t:      t,
		notify: make(chan struct{}, 1),
	}

	server := grpc.NewServer()
	collectortrace.RegisterTraceServiceServer(server, collector)

	go func() {
		_ = server.Serve(lis)
	}()

	t.Cleanup(func() {
		server.Stop()
		_ = lis.Close()
	})

	return collector, lis.Addr().String()
}

func (m *mockTraceCollector) Export(_ context.Context, req *collectortrace.ExportTraceServiceRequest) (*collectortrace.ExportTraceServiceResponse, error) {
	m.mu.Lock()
	for _, rs := range req.ResourceSpans {
		for _, scope := range rs.ScopeSpans {
			m.spans = append(m.spans, scope.Spans...)
		}
	}
	total := len(m.spans)
	m.mu.Unlock()

	if m.t != nil {
		m.t.Logf("collector holds %d spans", total)
	}

	select {
	case m.notify <- struct{}{}:
	default:
	}

	return &collectortrace.ExportTraceServiceResponse{}, nil
}

// WaitForSpanNamed blocks until a span with the given name arrives or the
// context expires, and returns it (nil on timeout).
func (m *mockTraceCollector) WaitForSpanNamed(ctx context.Context, name string) *tracepb.Span {
	for {
		m.mu.Lock()
		for _, span := range m.spans {
			if span.Name == name {
				m.mu.Unlock()
				return span
			}
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-m.notify:
		}
	}
}

// spanAttr returns the string value of a span attribute, or "" when absent.
func spanAttr(span *tracepb.Span, key string) string {
	for _, attr := range span.Attributes {
		if attr.Key == key {
			return attr.Value.GetStringValue()
		}
	}
	return ""
}

// spanEvent returns the first event with the given name, or nil.
func spanEvent(span *tracepb.Span, name string) *tracepb.Span_Event {
	for _, event := range span.Events {
		if event.Name == name {
			return event
		}
	}
	return nil
}

// eventAttrValue returns an event attribute value, or nil when absent.
func eventAttrValue(event *tracepb.Span_Event, key string) *commonpb.AnyValue {
	for _, attr := range event.Attributes {
		if attr.Key == key {
			return attr.Value
		}
	}
	return nil
}
