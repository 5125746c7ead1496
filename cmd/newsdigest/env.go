package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LJTian/newsdigest/internal/collector"
	"github.com/LJTian/newsdigest/internal/config"
	"github.com/LJTian/newsdigest/internal/pipeline"
	"github.com/LJTian/newsdigest/internal/storage"
)

// buildPipeline 按配置组装来源、Session 参数与处理链
func buildPipeline(c *config.Config, log *zap.Logger) (*pipeline.Pipeline, error) {
	sources, err := config.LoadSources(c.SourcesFile, log)
	if err != nil {
		return nil, err
	}
	sessOpts, err := c.SessionOptions(log)
	if err != nil {
		return nil, err
	}
	proc, err := c.NewProcessor()
	if err != nil {
		return nil, err
	}

	log.Info("pipeline ready",
		zap.Int("sources", len(sources)),
		zap.String("dedup", proc.Deduper.Name()),
		zap.Int("max_items", proc.Ranker.Max),
	)
	return pipeline.New(collector.NewRouter(), proc, pipeline.Config{
		Session: sessOpts,
		Fetch:   c.FetchOptions(),
		Sources: sources,
	}, log), nil
}

// openStore 连接 Postgres / Redis，并登记所有配置的来源
func openStore(ctx context.Context, c *config.Config, sources []collector.Source, log *zap.Logger) (*storage.Store, error) {
	if c.Store.PostgresDSN == "" {
		return nil, eris.New("store.postgres_dsn is not configured")
	}
	store, err := storage.NewStore(c.Store.PostgresDSN, c.Store.RedisAddr, c.Store.CacheTTL, log)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	for _, src := range sources {
		if _, err := store.EnsureSource(ctx, src); err != nil {
			store.Close()
			return nil, eris.Wrapf(err, "ensure source %s", src.Name)
		}
	}
	return store, nil
}
