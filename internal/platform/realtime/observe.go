package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Listener is the subscribe side of the Hub.
type Listener interface {
	Listen(topic string, fn func(Event)) Unsubscribe
}

// Observe delivers the current value of a document to fn and re-delivers it
// after every change published on topic. Deliveries for one observation never
// overlap.
//
// The listener is registered before the first read so a change that lands in
// between is not missed. If the first read fails the observation is torn down
// and the error returned; later read failures are logged and skipped.
func Observe[T any](ctx context.Context, l Listener, topic string, fetch func(context.Context) (T, error), fn func(T), logger zerolog.Logger) (Unsubscribe, error) {
	var (
		mu      sync.Mutex
		stopped bool
	)
	refetchCtx := context.WithoutCancel(ctx)

	deliver := func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return err
		}
		fn(v)
		return nil
	}

	unlisten := l.Listen(topic, func(Event) {
		if err := deliver(refetchCtx); err != nil {
			logger.Error().Err(err).Str("topic", topic).Msg("refresh observed document")
		}
	})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			unlisten()
			mu.Lock()
			stopped = true
			mu.Unlock()
		})
	}

	if err := deliver(ctx); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}
