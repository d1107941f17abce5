// Package queue defines the at-most-one delivery contract shared by the
// Postgres-backed queues and the in-memory queue used in tests.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmpty is returned when no unclaimed item is available.
	ErrEmpty = errors.New("queue is empty")
	// ErrLeaseClosed is returned when a lease is used after commit or abandon.
	ErrLeaseClosed = errors.New("lease already closed")
)

// Item is a queued payload together with its store-assigned id.
type Item[T any] struct {
	ID        int64
	Payload   T
	CreatedAt time.Time
}

// Lease is an exclusive claim on one item. While a lease is open no other
// consumer can claim the same item.
type Lease[T any] interface {
	// Item returns the claimed item.
	Item() *Item[T]
	// Commit removes the item and releases the claim.
	Commit(ctx context.Context) error
	// Abandon releases the claim without removing the item, making it
	// available to other consumers again.
	Abandon()
}

// Queue is an unordered pool of payloads where each item is delivered to at
// most one consumer.
type Queue[T any] interface {
	// Push stores a payload and returns its id.
	Push(ctx context.Context, payload T) (int64, error)
	// Pop claims and removes one item in a single attempt.
	// Returns ErrEmpty when nothing can be claimed.
	Pop(ctx context.Context) (*Item[T], error)
	// Claim takes an exclusive lease on one item without removing it.
	// Returns ErrEmpty when nothing can be claimed.
	Claim(ctx context.Context) (Lease[T], error)
	// Len returns the number of stored items, claimed or not.
	Len(ctx context.Context) (int, error)
}

// Claimer is the part of Queue needed to pop items.
type Claimer[T any] interface {
	Claim(ctx context.Context) (Lease[T], error)
}

// PopFrom claims one item and commits it right away.
func PopFrom[T any](ctx context.Context, q Claimer[T]) (*Item[T], error) {
	lease, err := q.Claim(ctx)
	if err != nil {
		return nil, err
	}

	if err := lease.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item %d: %w", lease.Item().ID, err)
	}

	return lease.Item(), nil
}

// Drain pops up to limit items. It stops early when the queue is empty.
func Drain[T any](ctx context.Context, q Claimer[T], limit int) ([]*Item[T], error) {
	items := make([]*Item[T], 0, limit)

	for len(items) < limit {
		item, err := PopFrom(ctx, q)
		if errors.Is(err, ErrEmpty) {
			break
		}

		if err != nil {
			return items, err
		}

		items = append(items, item)
	}

	return items, nil
}
