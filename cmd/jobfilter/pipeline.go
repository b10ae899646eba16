package main

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/assembler"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/oracle"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/provision"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
)

// pipeline is the provisioned filter: the catalog plus everything needed to
// answer queries against it.
type pipeline struct {
	provisioner *provision.Provisioner
	oracle      *oracle.Oracle
	evaluator   *evaluator.Evaluator
	assembler   *assembler.Assembler
}

// buildPipeline loads the jobs, provisions one index per job and field in
// store and wires the query path. m may be nil.
func buildPipeline(ctx context.Context, cfg *config.Config, store oracle.Store, source jobs.Source, m *metrics.Metrics) (*pipeline, error) {
	records, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading jobs: %w", err)
	}

	prov := provision.New(store, provision.Options{
		FalsePositiveRate: cfg.Filter.FalsePositiveRate,
		Concurrency:       cfg.Filter.ProvisionConcurrency,
	}, m)
	catalog, err := prov.Run(ctx, records)
	if err != nil {
		return nil, err
	}

	orc := oracle.New(store, oracle.Options{
		Timeout:             cfg.Filter.OracleTimeout,
		BreakerThreshold:    cfg.Filter.BreakerThreshold,
		BreakerResetTimeout: cfg.Filter.BreakerResetTimeout,
	}, m)
	ev, err := evaluator.New(orc, cfg.Filter.Concurrency, m)
	if err != nil {
		return nil, err
	}
	asm := assembler.New(catalog, ev,
		assembler.WithMaxResults(cfg.Filter.MaxResults),
		assembler.WithMetrics(m),
	)
	return &pipeline{
		provisioner: prov,
		oracle:      orc,
		evaluator:   ev,
		assembler:   asm,
	}, nil
}

func (p *pipeline) Close() {
	p.evaluator.Release()
}
