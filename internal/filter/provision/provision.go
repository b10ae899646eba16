// Package provision builds the per-(job, field) membership filters from the
// precomputed word lists before the service takes traffic.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

// DefaultFalsePositiveRate is the target false-positive probability of every
// filter.
const DefaultFalsePositiveRate = 0.000000001

type Options struct {
	FalsePositiveRate float64
	Concurrency       int
	Retry             resilience.Backoff
}

// Provisioner creates one filter per job and field in a Store.
type Provisioner struct {
	store   oracle.Store
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
	done    atomic.Bool
}

// New returns a Provisioner writing to store. m may be nil.
func New(store oracle.Store, opts Options, m *metrics.Metrics) *Provisioner {
	if opts.FalsePositiveRate <= 0 {
		opts.FalsePositiveRate = DefaultFalsePositiveRate
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Provisioner{
		store:   store,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "provisioner"),
	}
}

// Run checks that every record carries a word list for every field, then
// replaces each (job, field) filter in the store with a fresh one holding
// exactly those words. Any missing list fails with ErrMissingData before the
// store is touched. On success the records' word lists are released and the
// job catalog is returned.
func (p *Provisioner) Run(ctx context.Context, records []jobs.Record) (*jobs.Catalog, error) {
	start := time.Now()
	for _, rec := range records {
		for _, field := range jobs.Fields {
			if rec.Words[field] == nil {
				return nil, fmt.Errorf("job %s field %s: %w", rec.Job.ID, field, apperrors.ErrMissingData)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			for _, field := range jobs.Fields {
				if err := p.provision(gctx, oracle.Key(rec.Job.ID, field), rec.Words[field]); err != nil {
					return fmt.Errorf("job %s field %s: %w", rec.Job.ID, field, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("provisioning indexes: %w", err)
	}

	all := make([]jobs.Job, len(records))
	for i := range records {
		all[i] = records[i].Job
		records[i].Words = nil
	}
	catalog := jobs.NewCatalog(all)
	p.done.Store(true)
	if p.metrics != nil {
		p.metrics.CatalogJobs.Set(float64(catalog.Len()))
	}
	p.logger.Info("indexes provisioned",
		"jobs", catalog.Len(),
		"indexes", catalog.Len()*len(jobs.Fields),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return catalog, nil
}

// Done reports whether Run has completed successfully.
func (p *Provisioner) Done() bool {
	return p.done.Load()
}

// provision rebuilds one filter. Delete makes the sequence safe to retry.
func (p *Provisioner) provision(ctx context.Context, key string, words []string) error {
	capacity := uint(len(words))
	if capacity == 0 {
		capacity = 1
	}
	err := resilience.Retry(ctx, "provision "+key, p.opts.Retry, func() error {
		if err := p.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
		if err := p.store.Reserve(ctx, key, p.opts.FalsePositiveRate, capacity); err != nil {
			return fmt.Errorf("reserving %s: %w", key, err)
		}
		if len(words) == 0 {
			return nil
		}
		if err := p.store.AddAll(ctx, key, words...); err != nil {
			return fmt.Errorf("adding to %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.IndexesProvisioned.Inc()
	}
	p.logger.Debug("index provisioned", "key", key, "words", len(words))
	return nil
}
