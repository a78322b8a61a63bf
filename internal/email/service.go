package email

import (
	"context"
)

// Service is the outbound email transport. Implementations are
// fire-and-forget from the engine's perspective: callers log failures
// but never let them abort a fan-out.
type Service interface {
	Send(ctx context.Context, to, subject, body string) error
}
