package database

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel written by the row triggers.
const ChangeChannel = "nexttale_changes"

const (
	changeFeedReconnectDelay = 2 * time.Second
	changeFeedBufferSize     = 32
)

var _ interfaces.ChangeFeed = (*PgChangeFeed)(nil)

type changeSubscriber struct {
	predicate models.ChangePredicate
	ch        chan models.ChangeEvent
}

// PgChangeFeed listens on a dedicated connection and fans row changes out to subscribers.
type PgChangeFeed struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*changeSubscriber
}

// NewPgChangeFeed creates a change feed. Call Run to start listening.
func NewPgChangeFeed(pool *pgxpool.Pool, logger *zap.Logger) *PgChangeFeed {
	return &PgChangeFeed{
		pool:   pool,
		logger: logger.Named("PgChangeFeed"),
		subs:   make(map[int]*changeSubscriber),
	}
}

// Subscribe registers a subscriber. Events that do not fit in the buffer are dropped.
func (f *PgChangeFeed) Subscribe(predicate models.ChangePredicate) (<-chan models.ChangeEvent, func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	sub := &changeSubscriber{predicate: predicate, ch: make(chan models.ChangeEvent, changeFeedBufferSize)}
	f.subs[id] = sub
	f.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe
}

// Run blocks until ctx is done, reconnecting after connection failures.
func (f *PgChangeFeed) Run(ctx context.Context) {
	f.logger.Info("Change feed started", zap.String("channel", ChangeChannel))
	for {
		err := f.listen(ctx)
		if ctx.Err() != nil {
			f.logger.Info("Change feed stopped")
			return
		}
		f.logger.Warn("Change feed connection lost, reconnecting", zap.Error(err), zap.Duration("delay", changeFeedReconnectDelay))
		select {
		case <-ctx.Done():
			f.logger.Info("Change feed stopped")
			return
		case <-time.After(changeFeedReconnectDelay):
		}
	}
}

func (f *PgChangeFeed) listen(ctx context.Context) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return err
	}
	f.logger.Debug("Listening for changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			// A LISTEN-ing connection must not go back into the pool.
			_ = conn.Conn().Close(context.Background())
			return err
		}
		f.dispatch(n.Payload)
	}
}

func (f *PgChangeFeed) dispatch(payload string) {
	var ev models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		f.logger.Warn("Ignoring malformed change notification", zap.String("payload", payload), zap.Error(err))
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, sub := range f.subs {
		if sub.predicate != nil && !sub.predicate(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			f.logger.Warn("Change subscriber is slow, dropping event",
				zap.Int("subscriber", id),
				zap.String("table", ev.Table),
				zap.Stringer("rowID", ev.ID),
			)
		}
	}
}
