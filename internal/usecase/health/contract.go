package health

import "context"

// Pinger checks that a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}
