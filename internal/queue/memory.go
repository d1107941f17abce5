package queue

import (
	"context"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Memory is an in-process Queue with the same claim semantics as the
// Postgres queue: a claimed item is invisible to other consumers until its
// lease is committed or abandoned.
type Memory[T any] struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	nextID int64
	order  []int64
	rows   map[int64]*memoryRow[T]
}

type memoryRow[T any] struct {
	item   Item[T]
	leased bool
}

// NewMemory creates an empty in-memory queue.
func NewMemory[T any](clock clockwork.Clock) *Memory[T] {
	return &Memory[T]{
		clock: clock,
		rows:  make(map[int64]*memoryRow[T]),
	}
}

// Push implements Queue.
func (q *Memory[T]) Push(_ context.Context, payload T) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	id := q.nextID

	q.rows[id] = &memoryRow[T]{
		item: Item[T]{ID: id, Payload: payload, CreatedAt: q.clock.Now()},
	}
	q.order = append(q.order, id)

	return id, nil
}

// Pop implements Queue.
func (q *Memory[T]) Pop(ctx context.Context) (*Item[T], error) {
	return PopFrom[T](ctx, q)
}

// Claim implements Queue.
func (q *Memory[T]) Claim(ctx context.Context) (Lease[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		row := q.rows[id]
		if row.leased {
			continue
		}

		row.leased = true
		item := row.item

		return &memoryLease[T]{queue: q, item: &item}, nil
	}

	return nil, ErrEmpty
}

// Len implements Queue.
func (q *Memory[T]) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.rows), nil
}

// Payloads returns a snapshot of every stored payload in insertion order.
func (q *Memory[T]) Payloads() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	payloads := make([]T, 0, len(q.order))
	for _, id := range q.order {
		payloads = append(payloads, q.rows[id].item.Payload)
	}

	return payloads
}

type memoryLease[T any] struct {
	queue  *Memory[T]
	item   *Item[T]
	closed bool
}

func (l *memoryLease[T]) Item() *Item[T] {
	return l.item
}

func (l *memoryLease[T]) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()

	if l.closed {
		return ErrLeaseClosed
	}

	l.closed = true
	delete(l.queue.rows, l.item.ID)
	l.queue.order = slices.DeleteFunc(l.queue.order, func(id int64) bool {
		return id == l.item.ID
	})

	return nil
}

func (l *memoryLease[T]) Abandon() {
	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()

	if l.closed {
		return
	}

	l.closed = true
	if row, ok := l.queue.rows[l.item.ID]; ok {
		row.leased = false
	}
}
