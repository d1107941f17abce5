package core

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Status represents a worker's current state.
type Status struct {
	WorkerID   string     `json:"workerId"`
	WorkerType string     `json:"workerType"`
	SubType    string     `json:"subType"`
	LastSeen   time.Time  `json:"lastSeen"`
	State      string     `json:"state"`
	Until      *time.Time `json:"until,omitempty"`
	Iterations int64      `json:"iterations"`
	LastError  string     `json:"lastError,omitempty"`
	IsHealthy  bool       `json:"isHealthy"`
}

// IsStale reports whether the worker missed its heartbeats at now.
func (s *Status) IsStale(now time.Time) bool {
	return now.Sub(s.LastSeen) > StaleThreshold
}

// Monitor handles worker status reporting and querying.
type Monitor struct {
	client rueidis.Client
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewMonitor creates a new worker status monitor.
func NewMonitor(client rueidis.Client, clock clockwork.Clock, logger *zap.Logger) *Monitor {
	return &Monitor{
		client: client,
		clock:  clock,
		logger: logger,
	}
}

// ReportStatus updates a worker's status in Redis.
func (m *Monitor) ReportStatus(ctx context.Context, status Status) error {
	status.LastSeen = m.clock.Now()

	data, err := sonic.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	key := fmt.Sprintf("%s%s:%s:%s", StatusKeyPrefix, status.WorkerType, status.SubType, status.WorkerID)

	err = m.client.Do(ctx, m.client.B().Set().Key(key).Value(string(data)).Ex(HeartbeatTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}

	return nil
}

// GetAllStatuses retrieves all worker statuses ordered by type and id.
func (m *Monitor) GetAllStatuses(ctx context.Context) ([]Status, error) {
	keys, err := m.client.Do(ctx, m.client.B().Keys().Pattern(StatusKeyPrefix+"*").Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to get worker keys: %w", err)
	}

	statuses := make([]Status, 0, len(keys))

	for _, key := range keys {
		data, err := m.client.Do(ctx, m.client.B().Get().Key(key).Build()).AsBytes()
		if err != nil {
			m.logger.Error("Failed to get worker status", zap.String("key", key), zap.Error(err))
			continue
		}

		var status Status
		if err := sonic.Unmarshal(data, &status); err != nil {
			m.logger.Error("Failed to unmarshal worker status", zap.String("key", key), zap.Error(err))
			continue
		}

		statuses = append(statuses, status)
	}

	slices.SortFunc(statuses, func(a, b Status) int {
		return cmp.Or(
			cmp.Compare(a.WorkerType, b.WorkerType),
			cmp.Compare(a.SubType, b.SubType),
			cmp.Compare(a.WorkerID, b.WorkerID),
		)
	})

	return statuses, nil
}
