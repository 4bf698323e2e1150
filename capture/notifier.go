package capture

import (
	"context"
	"sync"
)

// Notifier fans out notifications to subscribers without blocking the publisher
type Notifier[T any] struct {
	mu sync.RWMutex
	// subscribers holds the channels for each subscriber while allowing to find a subscriber by its read channel
	subscribers map[<-chan T]chan T
	bufferSize  int
	notifyCh    chan T
	done        chan struct{}
	closeOnce   sync.Once
	closed      bool
}

// NotifierOptions configures a notifier
type NotifierOptions struct {
	// SubscriberBufferSize is the buffer size for each subscriber channel
	SubscriberBufferSize int

	// NotificationBufferSize is the buffer size for the internal notification channel
	NotificationBufferSize int
}

// DefaultNotifierOptions returns default options for a notifier
func DefaultNotifierOptions() NotifierOptions {
	return NotifierOptions{
		SubscriberBufferSize:   100,
		NotificationBufferSize: 1000,
	}
}

// NewNotifier creates a new notifier with default options
func NewNotifier[T any]() *Notifier[T] {
	return NewNotifierWithOptions[T](DefaultNotifierOptions())
}

// NewNotifierWithOptions creates a new notifier with specified options
func NewNotifierWithOptions[T any](options NotifierOptions) *Notifier[T] {
	n := &Notifier[T]{
		subscribers: make(map[<-chan T]chan T),
		bufferSize:  options.SubscriberBufferSize,
		notifyCh:    make(chan T, options.NotificationBufferSize),
		done:        make(chan struct{}),
	}

	go n.processNotifications()

	return n
}

// Subscribe returns a channel that receives notifications.
// The subscription ends when ctx is done or the notifier is closed.
func (n *Notifier[T]) Subscribe(ctx context.Context) <-chan T {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		ch := make(chan T)
		close(ch)
		return ch
	}

	ch := make(chan T, n.bufferSize)
	n.subscribers[ch] = ch
	n.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			n.Unsubscribe(ch)
		case <-n.done:
		}
	}()

	return ch
}

// Unsubscribe removes a subscription
func (n *Notifier[T]) Unsubscribe(ch <-chan T) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if realCh, exists := n.subscribers[ch]; exists {
		delete(n.subscribers, ch)
		close(realCh)
	}
}

// Notify sends a notification to all subscribers.
// If the internal channel is full, the notification is dropped.
func (n *Notifier[T]) Notify(item T) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}

	select {
	case n.notifyCh <- item:
	default:
	}
}

// Close closes the notifier and all subscriber channels
func (n *Notifier[T]) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.notifyCh)
		n.mu.Unlock()

		// Wait for pending notifications to be delivered before closing subscribers
		<-n.done
	})
}

func (n *Notifier[T]) processNotifications() {
	for item := range n.notifyCh {
		n.mu.RLock()
		for _, ch := range n.subscribers {
			select {
			case ch <- item:
			default:
				// Subscriber channel is full, drop this notification for this subscriber
			}
		}
		n.mu.RUnlock()
	}

	n.mu.Lock()
	for key, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, key)
	}
	n.mu.Unlock()
	close(n.done)
}
