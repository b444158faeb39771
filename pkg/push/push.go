package push

import "context"

// Sender is the uniform per-platform push contract. Implementations
// return an error on failure; callers record outcomes per target and
// never let one failure abort the others.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}
