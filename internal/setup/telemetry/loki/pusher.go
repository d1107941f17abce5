// Package loki ships log lines to a Grafana Loki push endpoint.
package loki

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzip"
	"github.com/robalyx/reciprocal/internal/setup/config"
)

// PushPath is appended to the configured Loki URL.
const PushPath = "/loki/api/v1/push"

// ErrUnexpectedStatusCode is returned when Loki does not answer 204.
var ErrUnexpectedStatusCode = errors.New("unexpected status code from Loki")

// Pusher batches log lines and sends them to Loki in the background.
// A batch is sent when it is full or when the flush interval elapses.
type Pusher struct {
	cfg     config.Loki
	labels  map[string]string
	client  *retryablehttp.Client
	clock   clockwork.Clock
	entries chan [2]string
	batch   [][2]string
	onError func(error)
	wg      sync.WaitGroup
	quit    chan struct{}
	once    sync.Once
}

// NewPusher starts a pusher. Extra labels are merged over the configured ones.
// Push failures are passed to onError, which must not log through the
// core fed by this pusher.
func NewPusher(cfg config.Loki, labels map[string]string, clock clockwork.Clock, onError func(error)) *Pusher {
	merged := make(map[string]string, len(cfg.Labels)+len(labels))
	for k, v := range cfg.Labels {
		merged[k] = v
	}

	for k, v := range labels {
		merged[k] = v
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	client.HTTPClient.Timeout = 10 * time.Second

	p := &Pusher{
		cfg:     cfg,
		labels:  merged,
		client:  client,
		clock:   clock,
		entries: make(chan [2]string, cfg.BatchMaxSize*2),
		batch:   make([][2]string, 0, cfg.BatchMaxSize),
		onError: onError,
		quit:    make(chan struct{}),
	}

	p.wg.Add(1)

	go p.run()

	return p
}

// Add queues a line. Lines are dropped while the buffer is full.
func (p *Pusher) Add(ts time.Time, raw string) {
	select {
	case p.entries <- [2]string{strconv.FormatInt(ts.UnixNano(), 10), raw}:
	default:
	}
}

// Stop sends the pending batch and stops the pusher. Safe to call twice.
func (p *Pusher) Stop() {
	p.once.Do(func() {
		close(p.quit)
		p.wg.Wait()
	})
}

func (p *Pusher) run() {
	defer p.wg.Done()

	ticker := p.clock.NewTicker(time.Duration(p.cfg.BatchMaxWaitMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			p.drain()
			p.flush()

			return
		case entry := <-p.entries:
			p.batch = append(p.batch, entry)
			if len(p.batch) >= p.cfg.BatchMaxSize {
				p.flush()
			}
		case <-ticker.Chan():
			p.flush()
		}
	}
}

// drain moves every buffered line into the batch.
func (p *Pusher) drain() {
	for {
		select {
		case entry := <-p.entries:
			p.batch = append(p.batch, entry)
		default:
			return
		}
	}
}

func (p *Pusher) flush() {
	if len(p.batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.send(ctx, p.batch); err != nil && p.onError != nil {
		p.onError(fmt.Errorf("failed to push %d log lines: %w", len(p.batch), err))
	}

	p.batch = p.batch[:0]
}

func (p *Pusher) send(ctx context.Context, values [][2]string) error {
	body, err := sonic.Marshal(pushRequest{
		Streams: []stream{{Stream: p.labels, Values: values}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode push request: %w", err)
	}

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body); err != nil {
		return fmt.Errorf("failed to compress: %w", err)
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+PushPath, buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	if p.cfg.Username != "" {
		req.SetBasicAuth(p.cfg.Username, p.cfg.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return nil
}
