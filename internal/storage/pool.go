package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/semaphore"

	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/metrics"
)

// Pool bounds concurrent calls into a blocking store and gives every call
// a deadline. A timeout surfaces as a retryable Upstream error.
type Pool struct {
	inner   ObjectStore
	sem     *semaphore.Weighted
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewPool(inner ObjectStore, workers int, timeout time.Duration, m *metrics.Metrics) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pool{
		inner:   inner,
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
		metrics: m,
	}
}

func (p *Pool) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.sem.Acquire(ctx, 1)
	if err == nil {
		err = fn(ctx)
		p.sem.Release(1)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.StorageOps.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return svcErr.Upstream("storage timed out, retry later", err)
	default:
		return svcErr.Upstream("storage unavailable", err)
	}
}

func (p *Pool) Put(ctx context.Context, r io.Reader, size int64, contentType, keyHint string) (string, error) {
	var key string
	err := p.run(ctx, "put", func(ctx context.Context) error {
		var err error
		key, err = p.inner.Put(ctx, r, size, contentType, keyHint)
		return err
	})
	return key, err
}

func (p *Pool) Delete(ctx context.Context, key string) error {
	return p.run(ctx, "delete", func(ctx context.Context) error {
		return p.inner.Delete(ctx, key)
	})
}

func (p *Pool) URL(key string) string { return p.inner.URL(key) }

func (p *Pool) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := p.run(ctx, "list", func(ctx context.Context) error {
		var err error
		keys, err = p.inner.List(ctx, prefix)
		return err
	})
	return keys, err
}
