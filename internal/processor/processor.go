package processor

import (
	"context"

	"merchbatch/internal/items"
)

// Processor acquires the external resource for one run.
type Processor interface {
	Open(ctx context.Context) (Session, error)
}

// Session performs the per-item side effect while the resource is held.
type Session interface {
	Process(ctx context.Context, item items.Item) error
	Close() error
}

// HealthChecker is implemented by processors that can report readiness
// without opening a session.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Health summarizes the readiness of a processor.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Check reports p's health when it implements HealthChecker.
func Check(ctx context.Context, name string, p Processor) Health {
	if p == nil {
		return Unhealthy(name, "processor not configured")
	}
	if checker, ok := p.(HealthChecker); ok {
		return checker.HealthCheck(ctx)
	}
	return Healthy(name)
}
