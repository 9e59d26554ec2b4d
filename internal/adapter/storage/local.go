package storage

import (
	"context"
	"sync"
)

// LocalNotifier delivers change signals between components of one process.
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[string]map[chan struct{}]struct{})}
}

func (n *LocalNotifier) Publish(ctx context.Context, topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Listen(ctx context.Context, topic string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.listeners[topic] == nil {
		n.listeners[topic] = make(map[chan struct{}]struct{})
	}
	n.listeners[topic][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners[topic], ch)
		close(ch)
	}()

	return ch, nil
}

// LocalGuard is an in-process CacheRepository for single-instance
// deployments.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

func (g *LocalGuard) SetIdempotency(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return false, nil
	}
	g.held[key] = struct{}{}
	return true, nil
}

func (g *LocalGuard) ReleaseIdempotency(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
	return nil
}
