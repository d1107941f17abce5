package models

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/robalyx/reciprocal/internal/database/dbretry"
	"github.com/robalyx/reciprocal/internal/database/types"
	"github.com/robalyx/reciprocal/internal/queue"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ClaimScanLimit bounds how many candidate rows one claim attempt inspects.
const ClaimScanLimit = 64

// ErrLeaseLost is returned when a claimed row disappeared before commit.
var ErrLeaseLost = errors.New("claimed queue row no longer exists")

// QueueModel is a Postgres-backed queue.Queue. Items are claimed with
// session-level advisory locks keyed by (table oid, row id), so a claim is
// held by exactly one database session and is released automatically if
// that session ends.
type QueueModel[T any] struct {
	db     *bun.DB
	table  string
	logger *zap.Logger
}

// NewQueue creates a queue over the given table.
func NewQueue[T any](db *bun.DB, table string, logger *zap.Logger) *QueueModel[T] {
	return &QueueModel[T]{
		db:     db,
		table:  table,
		logger: logger.Named("db_" + table),
	}
}

// Push implements queue.Queue.
func (m *QueueModel[T]) Push(ctx context.Context, payload T) (int64, error) {
	data, err := sonic.MarshalString(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s payload: %w", m.table, err)
	}

	id, err := dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var id int64

		err := m.db.NewRaw(
			"INSERT INTO ? (data) VALUES (?::jsonb) RETURNING id",
			bun.Ident(m.table), data,
		).Scan(ctx, &id)

		return id, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to push to %s: %w", m.table, err)
	}

	m.logger.Debug("Pushed queue item", zap.Int64("id", id))

	return id, nil
}

// Pop implements queue.Queue.
func (m *QueueModel[T]) Pop(ctx context.Context) (*queue.Item[T], error) {
	return queue.PopFrom[T](ctx, m)
}

// Len implements queue.Queue.
func (m *QueueModel[T]) Len(ctx context.Context) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		return m.db.NewSelect().Table(m.table).Count(ctx)
	})
}

// Claim implements queue.Queue. The lease keeps a dedicated connection open
// until it is committed or abandoned. Claims are not retried: a retry after
// an ambiguous failure could hold a lock on a connection nobody owns.
func (m *QueueModel[T]) Claim(ctx context.Context) (queue.Lease[T], error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for %s: %w", m.table, err)
	}

	var ids []int64

	err = conn.NewSelect().
		Table(m.table).
		Column("id").
		OrderExpr("id ASC").
		Limit(ClaimScanLimit).
		Scan(ctx, &ids)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to scan %s: %w", m.table, err)
	}

	for _, id := range ids {
		item, err := m.tryClaim(ctx, conn, id)
		if err != nil {
			discardConn(conn)
			return nil, err
		}

		if item != nil {
			return &pgLease[T]{model: m, conn: conn, item: item}, nil
		}
	}

	conn.Close()

	return nil, queue.ErrEmpty
}

// tryClaim locks and loads one row. It returns a nil item when the row is
// locked by another session, was consumed concurrently, or held a payload
// that could not be decoded.
func (m *QueueModel[T]) tryClaim(ctx context.Context, conn bun.Conn, id int64) (*queue.Item[T], error) {
	var locked bool

	err := conn.NewRaw(
		"SELECT pg_try_advisory_lock(?::regclass::oid::int, ?::int)", m.table, id,
	).Scan(ctx, &locked)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s row %d: %w", m.table, id, err)
	}

	if !locked {
		return nil, nil
	}

	var row types.QueueRow

	err = conn.NewRaw(
		"SELECT id, data::text AS data, created_at FROM ? WHERE id = ?", bun.Ident(m.table), id,
	).Scan(ctx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, m.unlock(ctx, conn, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load %s row %d: %w", m.table, id, err)
	}

	var payload T
	if err := sonic.UnmarshalString(row.Data, &payload); err != nil {
		m.logger.Error("Dropping undecodable queue item",
			zap.Int64("id", id),
			zap.String("data", row.Data),
			zap.Error(err))

		return nil, m.deleteLocked(ctx, conn, id)
	}

	return &queue.Item[T]{ID: row.ID, Payload: payload, CreatedAt: row.CreatedAt}, nil
}

// unlock releases the advisory lock on a row this session holds.
func (m *QueueModel[T]) unlock(ctx context.Context, conn bun.Conn, id int64) error {
	_, err := conn.NewRaw(
		"SELECT pg_advisory_unlock(?::regclass::oid::int, ?::int)", m.table, id,
	).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to unlock %s row %d: %w", m.table, id, err)
	}

	return nil
}

// deleteLocked deletes a locked row and releases its lock in one statement.
func (m *QueueModel[T]) deleteLocked(ctx context.Context, conn bun.Conn, id int64) error {
	var unlocked bool

	err := conn.NewRaw(
		"DELETE FROM ? WHERE id = ? RETURNING pg_advisory_unlock(?::regclass::oid::int, id)",
		bun.Ident(m.table), id, m.table,
	).Scan(ctx, &unlocked)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s row %d", ErrLeaseLost, m.table, id)
	}

	if err != nil {
		return fmt.Errorf("failed to delete %s row %d: %w", m.table, id, err)
	}

	if !unlocked {
		m.logger.Warn("Advisory lock was not held at delete", zap.Int64("id", id))
	}

	return nil
}

// discardConn closes conn and removes it from the pool, ending its
// Postgres session and releasing any advisory locks it holds.
func discardConn(conn bun.Conn) {
	_ = conn.Raw(func(any) error {
		return driver.ErrBadConn
	})
	_ = conn.Close()
}

// pgLease holds a claimed row and the session owning its lock.
type pgLease[T any] struct {
	model  *QueueModel[T]
	conn   bun.Conn
	item   *queue.Item[T]
	mu     sync.Mutex
	closed bool
}

func (l *pgLease[T]) Item() *queue.Item[T] {
	return l.item
}

func (l *pgLease[T]) Commit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return queue.ErrLeaseClosed
	}

	l.closed = true

	if err := l.model.deleteLocked(ctx, l.conn, l.item.ID); err != nil {
		discardConn(l.conn)
		return err
	}

	return l.conn.Close()
}

func (l *pgLease[T]) Abandon() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.closed = true
	discardConn(l.conn)
}
