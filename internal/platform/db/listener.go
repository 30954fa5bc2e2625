package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ChangeChannel is the NOTIFY channel the dashboard triggers publish on. The
// payload is the document key path of the changed record.
const ChangeChannel = "dashboard_changes"

// Listener holds one pooled connection in LISTEN mode and hands every
// notification payload to a handler, in arrival order.
type Listener struct {
	pool    *pgxpool.Pool
	channel string
	handle  func(topic string)
	logger  zerolog.Logger
	backoff time.Duration
}

func NewListener(pool *pgxpool.Pool, handle func(topic string), logger zerolog.Logger) *Listener {
	return &Listener{
		pool:    pool,
		channel: ChangeChannel,
		handle:  handle,
		logger:  logger.With().Str("component", "store-listener").Logger(),
		backoff: time.Second,
	}
}

// Run listens until ctx is cancelled. A dropped connection is re-acquired
// after a short pause; notifications sent while disconnected are lost.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn().Err(err).Dur("retry_in", l.backoff).Msg("change listener disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer l.release(conn)

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Info().Str("channel", l.channel).Msg("listening for store changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.handle(n.Payload)
	}
}

// release drops the subscription before the connection goes back to the pool
// so a later borrower does not inherit queued notifications. A connection that
// cannot be cleaned is closed instead.
func (l *Listener) release(conn *pgxpool.Conn) {
	defer conn.Release()
	if conn.Conn().IsClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		l.logger.Debug().Err(err).Msg("closing listener connection")
		conn.Conn().Close(ctx)
	}
}
