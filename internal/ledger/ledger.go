// Package ledger consumes purchase events from Kafka and records them in
// Postgres.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/example/myxl-gateway/internal/queue"
	m "github.com/example/myxl-gateway/pkg/metrics"
)

const purchasesDDL = `
CREATE TABLE IF NOT EXISTS purchases (
	event_id       UUID PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	method         TEXT NOT NULL,
	package_code   TEXT NOT NULL,
	price          BIGINT NOT NULL,
	wallet_number  TEXT NOT NULL DEFAULT '',
	subscriber     BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes purchase rows. Replays of the same event are no-ops.
type Store struct {
	db execer
}

// Open connects to dsn and makes sure the purchases table exists.
func Open(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, purchasesDDL); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate purchases: %w", err)
	}
	return &Store{db: pool}, pool, nil
}

// Record inserts ev and reports whether a new row was written.
func (s *Store) Record(ctx context.Context, ev queue.PurchaseEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO purchases (event_id, transaction_id, method, package_code, price, wallet_number, subscriber, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.TransactionID, ev.Method, ev.PackageCode, ev.Price, ev.WalletNumber, ev.Subscriber, ev.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert purchase: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// messageReader is satisfied by *kafka.Reader.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type recorder interface {
	Record(ctx context.Context, ev queue.PurchaseEvent) (bool, error)
}

type Worker struct {
	r     messageReader
	store recorder
	log   *logrus.Entry
}

// NewReader builds the consumer-group reader the worker runs on.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func NewWorker(r messageReader, store recorder, log *logrus.Entry) *Worker {
	if log == nil {
		log = logrus.WithField("service", "purchase-ledger")
	}
	return &Worker{r: r, store: store, log: log}
}

// Run processes messages until ctx is done. A message is committed only
// after it was stored or found unusable, so a failed insert is redelivered
// on restart.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("ledger worker started")
	for {
		msg, err := w.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}
		if err := w.handle(ctx, msg); err != nil {
			return err
		}
		if err := w.r.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg kafka.Message) error {
	log := w.log.WithFields(logrus.Fields{"partition": msg.Partition, "offset": msg.Offset})

	var ev queue.PurchaseEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.EventID == "" {
		m.IncLedger("INVALID")
		log.WithError(err).Warn("skip bad purchase event")
		return nil
	}

	stored, err := w.store.Record(ctx, ev)
	if err != nil {
		m.IncLedger("FAILED")
		return err
	}
	if !stored {
		m.IncLedger("DUPLICATE")
		log.WithField("event_id", ev.EventID).Debug("purchase event already recorded")
		return nil
	}
	m.IncLedger("STORED")
	log.WithFields(logrus.Fields{
		"transaction_id": ev.TransactionID,
		"method":         ev.Method,
	}).Info("purchase recorded")
	return nil
}

func (w *Worker) Close() error { return w.r.Close() }
