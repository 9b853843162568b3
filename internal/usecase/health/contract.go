package health

import "context"

// Pinger checks one backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}
