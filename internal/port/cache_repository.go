package port

import "context"

// CacheRepository holds short-lived guards shared by every instance of the app.
type CacheRepository interface {
	// SetIdempotency takes the guard named key. It reports false while
	// another holder has it, so only one instance runs the guarded work.
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency deletes the key so the guarded operation can run again
	ReleaseIdempotency(ctx context.Context, key string) error
}

type ChangeNotifier interface {
	// Publish signals listeners of topic that its contents changed
	Publish(ctx context.Context, topic string) error

	// Listen returns a channel that receives a value after each change to
	// topic. Signals may be coalesced. The channel is closed when ctx is done.
	Listen(ctx context.Context, topic string) (<-chan struct{}, error)
}
