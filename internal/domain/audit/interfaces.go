package audit

import "context"

// Repository persists audit logs. Append must be durable before it returns
// and must assign Event.Seq; List returns events in append order.
type Repository interface {
	Append(ctx context.Context, key string, event *Event) error
	List(ctx context.Context, key string) ([]Event, error)
	Keys(ctx context.Context) ([]string, error)
}

// Flusher is implemented by repositories that buffer writes.
type Flusher interface {
	Flush(ctx context.Context, key string) error
}
